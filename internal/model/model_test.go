package model

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Level
		wantErr bool
	}{
		{"uppercase", "B1", LevelB1, false},
		{"lowercase", "b2", LevelB2, false},
		{"surrounding space", "  c1 ", LevelC1, false},
		{"lowest", "a1", LevelA1, false},
		{"highest", "C2", LevelC2, false},
		{"empty", "", "", true},
		{"out of ladder", "A3", "", true},
		{"garbage", "beginner", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLevel(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelIndex(t *testing.T) {
	// The ladder must be strictly ordered so level comparisons work.
	for i, l := range Levels {
		if l.Index() != i {
			t.Errorf("Levels[%d] = %q has Index() = %d", i, l, l.Index())
		}
	}
	if got := Level("Z9").Index(); got != -1 {
		t.Errorf("unknown level Index() = %d, want -1", got)
	}
	if LevelA1.Index() >= LevelC2.Index() {
		t.Error("expected A1 to rank below C2")
	}
}
