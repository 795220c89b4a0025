package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostwatch/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const GB = 1024 * 1024 * 1024

// ErrMeasurement wraps every failure to read utilization from the host
var ErrMeasurement = errors.New("measurement failed")

// Sampler produces one utilization reading per call. Implementations may
// block for their measurement window.
type Sampler interface {
	Sample(ctx context.Context) (models.Sample, error)
}

// HostSampler reads CPU utilization averaged over Window and memory
// utilization at the end of it.
type HostSampler struct {
	Window time.Duration
	now    func() time.Time
}

// NewHostSampler creates a sampler. A non-positive window defaults to one second.
func NewHostSampler(window time.Duration) *HostSampler {
	if window <= 0 {
		window = time.Second
	}
	return &HostSampler{Window: window, now: time.Now}
}

// Sample measures the host. The CPU window runs to completion once started.
func (s *HostSampler) Sample(ctx context.Context) (models.Sample, error) {
	percentage, err := cpu.PercentWithContext(ctx, s.Window, false)
	if err != nil {
		return models.Sample{}, fmt.Errorf("%w: cpu: %v", ErrMeasurement, err)
	}
	if len(percentage) == 0 {
		return models.Sample{}, fmt.Errorf("%w: cpu: no reading", ErrMeasurement)
	}

	virtualMemory, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.Sample{}, fmt.Errorf("%w: memory: %v", ErrMeasurement, err)
	}

	return models.Sample{
		Timestamp:     s.now(),
		CPUPercent:    percentage[0],
		MemoryPercent: virtualMemory.UsedPercent,
	}, nil
}

// GetCPUUsage returns an instantaneous CPU reading with per-core detail
func GetCPUUsage() (*models.CPUStatus, error) {
	percentage, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}
	if len(percentage) == 0 {
		return nil, fmt.Errorf("no cpu reading")
	}

	perCore, err := cpu.Percent(0, true)
	if err != nil {
		perCore = nil
	}

	coreCount, err := cpu.Counts(true)
	if err != nil {
		coreCount = 0
	}

	return &models.CPUStatus{
		UsagePercent: percentage[0],
		PerCore:      perCore,
		CoreCount:    coreCount,
	}, nil
}

// GetMemoryUsage returns memory usage information
func GetMemoryUsage() (*models.MemoryStatus, error) {
	virtualMemory, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	return &models.MemoryStatus{
		TotalGB:      float64(virtualMemory.Total) / GB,
		UsedGB:       float64(virtualMemory.Used) / GB,
		AvailableGB:  float64(virtualMemory.Available) / GB,
		UsagePercent: virtualMemory.UsedPercent,
	}, nil
}

// GetDiskUsage returns disk usage for a specific path
func GetDiskUsage(path string) (*models.DiskStatus, error) {
	if path == "" {
		path = "/"
	}

	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}

	return &models.DiskStatus{
		Path:         path,
		TotalGB:      float64(usage.Total) / GB,
		UsedGB:       float64(usage.Used) / GB,
		FreeGB:       float64(usage.Free) / GB,
		UsagePercent: usage.UsedPercent,
		Filesystem:   usage.Fstype,
	}, nil
}

// GetHostStatus returns complete host status
func GetHostStatus() (*models.HostStatus, error) {
	cpuStatus, err := GetCPUUsage()
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memStatus, err := GetMemoryUsage()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory usage: %w", err)
	}

	diskStatus, err := GetDiskUsage("/")
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage: %w", err)
	}

	return &models.HostStatus{
		CPU:       cpuStatus,
		Memory:    memStatus,
		Disk:      diskStatus,
		Timestamp: time.Now(),
	}, nil
}
