//go:build !(linux || darwin || freebsd)

package health

import "errors"

// DiskUsage contains disk usage information
type DiskUsage struct {
	TotalBytes     int64
	UsedBytes      int64
	AvailableBytes int64
	UsagePercent   float64
}

// GetDiskUsage is not implemented on this platform
func GetDiskUsage(path string) (*DiskUsage, error) {
	return nil, errors.New("disk usage not supported on this platform")
}
