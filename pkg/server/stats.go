package server

import (
	"os"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/denysvitali/fm-connector/internal/models"
)

// diskStats returns the usage of the filesystem holding root
func (s *Server) diskStats(root string) models.DiskStats {
	usage, err := disk.Usage(root)
	if err != nil {
		s.logger.Warnf("Failed to get disk usage of %s: %v", root, err)
		return models.DiskStats{Path: root}
	}
	return models.DiskStats{
		Path:    root,
		Total:   usage.Total,
		Used:    usage.Used,
		Free:    usage.Free,
		Percent: usage.UsedPercent,
	}
}

// processStats returns resource usage of the running connector
func (s *Server) processStats() models.ProcessStats {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.Warnf("Failed to get process info: %v", err)
		return models.ProcessStats{}
	}

	var stats models.ProcessStats
	if stats.CPUPercent, err = proc.CPUPercent(); err != nil {
		s.logger.Warnf("Failed to get CPU percent: %v", err)
	}
	if memInfo, err := proc.MemoryInfo(); err != nil {
		s.logger.Warnf("Failed to get memory info: %v", err)
	} else {
		stats.RSS = memInfo.RSS
	}
	if stats.MemoryPercent, err = proc.MemoryPercent(); err != nil {
		s.logger.Warnf("Failed to get memory percent: %v", err)
	}
	return stats
}
