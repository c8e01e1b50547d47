package health

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arturkwiek/SDD/internal/ai"
	"github.com/arturkwiek/SDD/internal/video"
)

// FFmpegChecker checks that ffmpeg was found. Without it only still images
// can be processed and no video can be saved.
type FFmpegChecker struct {
	ffmpeg   *video.FFmpegWrapper
	err      error
	required bool
}

// NewFFmpegChecker reports on the outcome of locating ffmpeg. required marks
// runs that cannot proceed without it.
func NewFFmpegChecker(ffmpeg *video.FFmpegWrapper, err error, required bool) *FFmpegChecker {
	return &FFmpegChecker{ffmpeg: ffmpeg, err: err, required: required}
}

func (c *FFmpegChecker) Name() string {
	return "ffmpeg"
}

func (c *FFmpegChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	if c.ffmpeg == nil {
		check.Status = StatusDegraded
		if c.required {
			check.Status = StatusUnhealthy
		}
		check.Message = "ffmpeg not available"
		if c.err != nil {
			check.Message = fmt.Sprintf("ffmpeg not available: %v", c.err)
		}
		return check
	}

	if ver, err := c.ffmpeg.GetVersion(); err == nil {
		check.Details["version"] = ver
	}
	check.Details["encoder"] = c.ffmpeg.GetPreferredEncoder()

	check.Status = StatusHealthy
	check.Message = "ffmpeg available"
	return check
}

// readinessProber is implemented by detectors backed by a remote service
type readinessProber interface {
	HealthCheck(ctx context.Context) error
}

// DetectorChecker checks that the detector can serve requests
type DetectorChecker struct {
	backend ai.Backend
}

func NewDetectorChecker(backend ai.Backend) *DetectorChecker {
	return &DetectorChecker{backend: backend}
}

func (c *DetectorChecker) Name() string {
	return "detector"
}

func (c *DetectorChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	if labels := c.backend.Labels(); labels != nil {
		check.Details["classes"] = len(labels)
	}

	prober, ok := c.backend.(readinessProber)
	if !ok {
		check.Status = StatusHealthy
		check.Message = "Local model loaded"
		return check
	}

	// A service that is down only empties frames, the run itself still works.
	if err := prober.HealthCheck(ctx); err != nil {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Inference service not ready: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Inference service is ready"
	return check
}

// DatabaseChecker checks the run history database
type DatabaseChecker struct {
	dbPath string
}

func NewDatabaseChecker(dbPath string) *DatabaseChecker {
	return &DatabaseChecker{dbPath: dbPath}
}

func (c *DatabaseChecker) Name() string {
	return "database"
}

func (c *DatabaseChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	if c.dbPath == "" {
		check.Status = StatusUnhealthy
		check.Message = "Database path not configured"
		return check
	}

	if _, err := os.Stat(c.dbPath); os.IsNotExist(err) {
		check.Status = StatusHealthy
		check.Message = "Database file will be created on first use"
		check.Details["file_exists"] = false
		return check
	}

	db, err := sql.Open("sqlite3", c.dbPath)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Failed to open database: %v", err)
		return check
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Database ping failed: %v", err)
		return check
	}

	check.Status = StatusHealthy
	check.Message = "Database connection OK"
	check.Details["file_exists"] = true
	return check
}

// OutputChecker checks that the artifact directories exist or can be
// created, and that their filesystem is not nearly full
type OutputChecker struct {
	paths           []string
	maxUsagePercent float64
}

// NewOutputChecker checks the parent directories of paths
func NewOutputChecker(maxUsagePercent float64, paths ...string) *OutputChecker {
	return &OutputChecker{paths: paths, maxUsagePercent: maxUsagePercent}
}

func (c *OutputChecker) Name() string {
	return "outputs"
}

func (c *OutputChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name())

	seen := make(map[string]bool)
	var dirs []string
	for _, p := range c.paths {
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if err := os.MkdirAll(dir, 0755); err != nil {
			check.Status = StatusUnhealthy
			check.Message = fmt.Sprintf("Failed to create output directory %s: %v", dir, err)
			return check
		}
		dirs = append(dirs, dir)
	}
	check.Details["dirs"] = dirs

	for _, dir := range dirs {
		usage, err := GetDiskUsage(dir)
		if err != nil {
			check.Details["disk_usage"] = "unknown"
			continue
		}
		if usage.UsagePercent >= c.maxUsagePercent {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("Filesystem of %s is %.1f%% full", dir, usage.UsagePercent)
			check.Details["available_bytes"] = usage.AvailableBytes
			return check
		}
	}

	check.Status = StatusHealthy
	check.Message = "Output directories writable"
	return check
}
