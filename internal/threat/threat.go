// Package threat scores detections by how much attention they deserve: model
// confidence, size in the frame, distance from the frame centre and the kind
// of object.
package threat

import (
	"math"
	"sort"
	"strings"

	"github.com/arturkwiek/SDD/internal/detection"
)

// Category is the safety class of a label
type Category string

const (
	CategoryDanger Category = "danger"
	CategoryMedium Category = "medium"
	CategorySafe   Category = "safe"
)

// Level is the coarse threat level of one detection
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// levels is the tie-break order for the dominant level: earlier wins
var levels = []Level{LevelLow, LevelMedium, LevelHigh}

var dangerLabels = map[string]bool{
	"airplane": true, "helicopter": true, "bird": true, "kite": true,
	"balloon": true, "drone": true, "paraglider": true, "hang glider": true,
}

var mediumLabels = map[string]bool{
	"car": true, "truck": true, "bus": true, "train": true, "boat": true,
	"ship": true, "motorcycle": true, "bicycle": true, "parking meter": true,
}

// Score weights and thresholds
const (
	weightScore     = 0.55
	weightArea      = 0.25
	weightProximity = 0.10
	weightBias      = 0.10
	areaGain        = 4.0

	highThreshold   = 0.65
	mediumThreshold = 0.35
)

// Classify returns the safety category of a class label
func Classify(label string) Category {
	name := strings.ToLower(strings.TrimSpace(label))
	switch {
	case dangerLabels[name]:
		return CategoryDanger
	case mediumLabels[name]:
		return CategoryMedium
	}
	return CategorySafe
}

func (c Category) bias() float64 {
	switch c {
	case CategoryDanger:
		return 0.20
	case CategoryMedium:
		return 0.10
	}
	return 0
}

// Assessment is the threat score of one detection
type Assessment struct {
	Score    float64
	Level    Level
	Category Category
	Area     float64 // Box area in square pixels
	AreaNorm float64 // Box area over frame area
}

// Assess scores d inside a width x height frame. Unknown frame size zeroes
// the area and proximity terms.
func Assess(d detection.Detection, width, height int) Assessment {
	category := Classify(d.Class)

	area := d.BBox.Area()
	frameArea := float64(max(0, width) * max(0, height))
	var areaNorm float64
	if frameArea > 0 {
		areaNorm = area / frameArea
	}

	var proximity float64
	if width > 0 && height > 0 {
		cx, cy := d.BBox.Center()
		dx := cx/float64(width) - 0.5
		dy := cy/float64(height) - 0.5
		proximity = 1 - math.Min(math.Hypot(dx, dy)/0.5, 1)
	}

	score := weightScore*clamp01(d.Confidence) +
		weightArea*clamp01(areaNorm*areaGain) +
		weightProximity*clamp01(proximity) +
		weightBias*category.bias()
	score = clamp01(score)

	return Assessment{
		Score:    score,
		Level:    LevelFor(score),
		Category: category,
		Area:     area,
		AreaNorm: areaNorm,
	}
}

// LevelFor maps a threat score to its level
func LevelFor(score float64) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	}
	return LevelLow
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ClassThreat summarizes the threat assessments of one class
type ClassThreat struct {
	Class     string
	Count     int
	MaxScore  float64
	MeanScore float64
	Dominant  Level
	Levels    map[Level]int
}

type classAccumulator struct {
	count  int
	max    float64
	sum    float64
	levels map[Level]int
}

// Tracker folds assessments per class over a run
type Tracker struct {
	classes map[string]*classAccumulator
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{classes: make(map[string]*classAccumulator)}
}

// Observe adds one assessment for class
func (t *Tracker) Observe(class string, a Assessment) {
	acc, ok := t.classes[class]
	if !ok {
		acc = &classAccumulator{max: a.Score, levels: make(map[Level]int, len(levels))}
		t.classes[class] = acc
	}
	acc.count++
	acc.sum += a.Score
	if a.Score > acc.max {
		acc.max = a.Score
	}
	acc.levels[a.Level]++
}

// Summary returns one entry per class, sorted by class
func (t *Tracker) Summary() []ClassThreat {
	out := make([]ClassThreat, 0, len(t.classes))
	for class, acc := range t.classes {
		counts := make(map[Level]int, len(acc.levels))
		for l, n := range acc.levels {
			counts[l] = n
		}
		out = append(out, ClassThreat{
			Class:     class,
			Count:     acc.count,
			MaxScore:  acc.max,
			MeanScore: acc.sum / float64(acc.count),
			Dominant:  dominant(counts),
			Levels:    counts,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

func dominant(counts map[Level]int) Level {
	best := levels[0]
	for _, l := range levels[1:] {
		if counts[l] > counts[best] {
			best = l
		}
	}
	return best
}
