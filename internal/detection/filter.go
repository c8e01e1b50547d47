package detection

import (
	"sort"
	"strings"
)

// ClassFilter keeps detections whose class is in the target set. An empty
// filter keeps everything.
type ClassFilter struct {
	targets map[string]struct{}
}

// NewClassFilter builds a filter from class names. Matching is case-insensitive.
func NewClassFilter(classes []string) *ClassFilter {
	if len(classes) == 0 {
		return &ClassFilter{}
	}
	targets := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			targets[c] = struct{}{}
		}
	}
	return &ClassFilter{targets: targets}
}

// Enabled reports whether the filter restricts anything
func (f *ClassFilter) Enabled() bool {
	return f != nil && len(f.targets) > 0
}

// Allows reports whether class passes the filter
func (f *ClassFilter) Allows(class string) bool {
	if !f.Enabled() {
		return true
	}
	_, ok := f.targets[strings.ToLower(class)]
	return ok
}

// Apply returns the detections that pass the filter, in order
func (f *ClassFilter) Apply(dets []Detection) []Detection {
	if !f.Enabled() {
		return dets
	}
	kept := dets[:0:0]
	for _, d := range dets {
		if f.Allows(d.Class) {
			kept = append(kept, d)
		}
	}
	return kept
}

// Unknown returns the targets that are not in the model's class list, sorted
func (f *ClassFilter) Unknown(known []string) []string {
	if !f.Enabled() {
		return nil
	}
	names := make(map[string]struct{}, len(known))
	for _, k := range known {
		names[strings.ToLower(k)] = struct{}{}
	}
	var unknown []string
	for t := range f.targets {
		if _, ok := names[t]; !ok {
			unknown = append(unknown, t)
		}
	}
	sort.Strings(unknown)
	return unknown
}
