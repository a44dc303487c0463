package model

import "time"

// HistoryExport is the top-level JSON structure for exam history export.
type HistoryExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Server     string        `json:"server"`
	Kind       ExamKind      `json:"exam_type,omitempty"`
	Total      int           `json:"total"`
	Items      []HistoryItem `json:"items"`
}
