//go:build !gocv

package video

import "errors"

// NativeAvailable reports whether this binary was built with OpenCV capture
const NativeAvailable = false

// ErrNativeUnavailable is returned when OpenCV capture was not compiled in
var ErrNativeUnavailable = errors.New("opencv capture not available: rebuild with -tags gocv")

// OpenNativeSource always fails without the gocv build tag
func OpenNativeSource(in Input, opts SourceOptions) (Source, error) {
	return nil, ErrNativeUnavailable
}
