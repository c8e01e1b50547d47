package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Camera is a local V4L2 capture device
type Camera struct {
	Index  int
	Device string
	Name   string
	Driver string
	Vendor string // USB idVendor:idProduct when sysfs exposes it
}

// CameraLister enumerates /dev/video* devices. Paths are fields so tests can
// point them at a temporary tree.
type CameraLister struct {
	DevDir   string
	SysfsDir string
	V4L2Ctl  string // Empty disables v4l2-ctl probing

	// isDevice reports whether path is a capture node; nil means a character device check
	isDevice func(path string) bool
}

// NewCameraLister returns a lister for the host's /dev and sysfs
func NewCameraLister() *CameraLister {
	l := &CameraLister{
		DevDir:   "/dev",
		SysfsDir: "/sys/class/video4linux",
	}
	if p, err := exec.LookPath("v4l2-ctl"); err == nil {
		l.V4L2Ctl = p
	}
	return l
}

// List returns the video devices sorted by index. Metadata nodes that share
// a camera with a capture node are still listed; the index is what the
// detector takes as its source argument.
func (l *CameraLister) List(ctx context.Context) ([]Camera, error) {
	matches, err := filepath.Glob(filepath.Join(l.DevDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob video devices: %w", err)
	}

	isDevice := l.isDevice
	if isDevice == nil {
		isDevice = isCharDevice
	}

	var cams []Camera
	for _, path := range matches {
		idx, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
		if err != nil || !isDevice(path) {
			continue
		}
		cam := Camera{Index: idx, Device: path, Name: "USB Camera"}
		l.fillFromSysfs(&cam)
		l.fillFromV4L2(ctx, &cam)
		cams = append(cams, cam)
	}

	sort.Slice(cams, func(i, j int) bool { return cams[i].Index < cams[j].Index })
	return cams, nil
}

func isCharDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// fillFromSysfs reads name and USB ids from /sys/class/video4linux/videoN
func (l *CameraLister) fillFromSysfs(cam *Camera) {
	if l.SysfsDir == "" {
		return
	}
	dir := filepath.Join(l.SysfsDir, filepath.Base(cam.Device))
	if name := readTrimmed(filepath.Join(dir, "name")); name != "" {
		cam.Name = name
	}

	// device links to the USB interface; ids live on its parent
	iface, err := filepath.EvalSymlinks(filepath.Join(dir, "device"))
	if err != nil {
		return
	}
	usbDev := filepath.Dir(iface)
	vendor := readTrimmed(filepath.Join(usbDev, "idVendor"))
	product := readTrimmed(filepath.Join(usbDev, "idProduct"))
	if vendor != "" && product != "" {
		cam.Vendor = vendor + ":" + product
	}
}

// fillFromV4L2 parses `v4l2-ctl --info` for card type and driver name
func (l *CameraLister) fillFromV4L2(ctx context.Context, cam *Camera) {
	if l.V4L2Ctl == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, l.V4L2Ctl, "--device", cam.Device, "--info").Output()
	if err != nil {
		return
	}
	parseV4L2Info(string(out), cam)
}

func parseV4L2Info(out string, cam *Camera) {
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Card type":
			if value != "" {
				cam.Name = value
			}
		case "Driver name":
			cam.Driver = value
		}
	}
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
