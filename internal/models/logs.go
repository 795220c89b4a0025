package models

import "time"

// MessageCount is one entry in a most-common-messages list
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// LogAnalysis summarizes an uploaded log file
type LogAnalysis struct {
	LevelCounts       map[string]int `json:"log_level_counts"`
	TotalLogs         int            `json:"total_logs"`
	TopErrors         []MessageCount `json:"top_errors"`
	TopWarnings       []MessageCount `json:"top_warnings"`
	TopInfo           []MessageCount `json:"top_info"`
	AnalysisTimestamp time.Time      `json:"analysis_timestamp"`
}
