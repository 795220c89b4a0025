package models

import "time"

// DiskStatus is usage of the filesystem holding Path
type DiskStatus struct {
	Path         string  `json:"path"`
	Filesystem   string  `json:"filesystem"`
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	FreeGB       float64 `json:"free_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

// HostStatus combines the point-in-time host readings served by /api/host
type HostStatus struct {
	CPU       *CPUStatus    `json:"cpu"`
	Memory    *MemoryStatus `json:"memory"`
	Disk      *DiskStatus   `json:"disk"`
	Timestamp time.Time     `json:"timestamp"`
}
