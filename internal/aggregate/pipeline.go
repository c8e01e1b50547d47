package aggregate

import (
	"fmt"
	"sort"

	"github.com/arturkwiek/SDD/internal/detection"
)

// OrderPolicy decides what Record does with out-of-order detections
type OrderPolicy int

const (
	// Reject refuses regressing detections with a SequenceError
	Reject OrderPolicy = iota
	// Tolerate records regressing detections and counts them
	Tolerate
)

// ParseOrderPolicy maps the configuration value to an OrderPolicy
func ParseOrderPolicy(s string) (OrderPolicy, error) {
	switch s {
	case "", "reject":
		return Reject, nil
	case "tolerate":
		return Tolerate, nil
	}
	return Reject, fmt.Errorf("unknown order policy %q", s)
}

func (p OrderPolicy) String() string {
	if p == Tolerate {
		return "tolerate"
	}
	return "reject"
}

// ClassEvent holds the running statistics for one class label
type ClassEvent struct {
	Class          string  `json:"class"`
	Count          int     `json:"count"`
	FirstTimestamp float64 `json:"first_timestamp"`
	LastTimestamp  float64 `json:"last_timestamp"`
	ScoreSum       float64 `json:"-"`
	MinScore       float64 `json:"min_score"`
	MaxScore       float64 `json:"max_score"`
	MeanScore      float64 `json:"mean_score"` // Set by Finalize
}

func newClassEvent(d detection.Detection) *ClassEvent {
	return &ClassEvent{
		Class:          d.Class,
		Count:          1,
		FirstTimestamp: d.Timestamp,
		LastTimestamp:  d.Timestamp,
		ScoreSum:       d.Confidence,
		MinScore:       d.Confidence,
		MaxScore:       d.Confidence,
	}
}

func (e *ClassEvent) add(d detection.Detection) {
	e.Count++
	if d.Timestamp < e.FirstTimestamp {
		e.FirstTimestamp = d.Timestamp
	}
	if d.Timestamp > e.LastTimestamp {
		e.LastTimestamp = d.Timestamp
	}
	e.ScoreSum += d.Confidence
	if d.Confidence < e.MinScore {
		e.MinScore = d.Confidence
	}
	if d.Confidence > e.MaxScore {
		e.MaxScore = d.Confidence
	}
}

// LabelCount is one line of the label-counts artifact
type LabelCount struct {
	Class string
	Count int
}

// Result is the snapshot returned by Finalize. Its slices are owned by the
// caller.
type Result struct {
	RunLog      []detection.Detection
	Events      []ClassEvent // Sorted by class label
	LabelCounts []LabelCount // Count descending, then label ascending
	Regressions int          // Out-of-order detections accepted under Tolerate
}

// Event returns the event for class, if one was recorded
func (r Result) Event(class string) (ClassEvent, bool) {
	i := sort.Search(len(r.Events), func(i int) bool { return r.Events[i].Class >= class })
	if i < len(r.Events) && r.Events[i].Class == class {
		return r.Events[i], true
	}
	return ClassEvent{}, false
}

// Counts returns the label counts as a map
func (r Result) Counts() map[string]int {
	m := make(map[string]int, len(r.LabelCounts))
	for _, lc := range r.LabelCounts {
		m[lc.Class] = lc.Count
	}
	return m
}

// Total returns the number of recorded detections
func (r Result) Total() int {
	return len(r.RunLog)
}

// Pipeline folds a stream of detections into a RunLog and a per-class event
// table. It is not safe for concurrent use.
type Pipeline struct {
	policy      OrderPolicy
	runLog      []detection.Detection
	events      map[string]*ClassEvent
	last        detection.Detection
	regressions int
	finalized   bool
	result      *Result
}

// NewPipeline creates an empty pipeline
func NewPipeline(policy OrderPolicy) *Pipeline {
	return &Pipeline{
		policy: policy,
		events: make(map[string]*ClassEvent),
	}
}

// Record appends d to the RunLog and updates its class event
func (p *Pipeline) Record(d detection.Detection) error {
	if p.finalized {
		return &StateError{Op: "record"}
	}
	if err := d.Validate(); err != nil {
		return err
	}

	if len(p.runLog) > 0 && (d.FrameIndex < p.last.FrameIndex || d.Timestamp < p.last.Timestamp) {
		if p.policy == Reject {
			return &SequenceError{
				PrevFrame:     p.last.FrameIndex,
				PrevTimestamp: p.last.Timestamp,
				Frame:         d.FrameIndex,
				Timestamp:     d.Timestamp,
			}
		}
		p.regressions++
	}

	p.runLog = append(p.runLog, d)
	p.last = d

	if ev, ok := p.events[d.Class]; ok {
		ev.add(d)
	} else {
		p.events[d.Class] = newClassEvent(d)
	}
	return nil
}

// Len returns the number of recorded detections
func (p *Pipeline) Len() int {
	return len(p.runLog)
}

// Finalize closes the pipeline and returns its result. Further calls return
// equal results; Record fails afterwards with a StateError.
func (p *Pipeline) Finalize() Result {
	if p.result == nil {
		p.result = p.snapshot()
		p.finalized = true
	}
	return p.result.clone()
}

func (p *Pipeline) snapshot() *Result {
	res := &Result{
		RunLog:      make([]detection.Detection, len(p.runLog)),
		Events:      make([]ClassEvent, 0, len(p.events)),
		LabelCounts: make([]LabelCount, 0, len(p.events)),
		Regressions: p.regressions,
	}
	copy(res.RunLog, p.runLog)

	for _, ev := range p.events {
		e := *ev
		e.MeanScore = e.ScoreSum / float64(e.Count)
		res.Events = append(res.Events, e)
		res.LabelCounts = append(res.LabelCounts, LabelCount{Class: e.Class, Count: e.Count})
	}

	sort.Slice(res.Events, func(i, j int) bool { return res.Events[i].Class < res.Events[j].Class })
	sort.Slice(res.LabelCounts, func(i, j int) bool {
		a, b := res.LabelCounts[i], res.LabelCounts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Class < b.Class
	})
	return res
}

func (r *Result) clone() Result {
	out := Result{
		RunLog:      append([]detection.Detection(nil), r.RunLog...),
		Events:      append([]ClassEvent(nil), r.Events...),
		LabelCounts: append([]LabelCount(nil), r.LabelCounts...),
		Regressions: r.Regressions,
	}
	if out.RunLog == nil {
		out.RunLog = []detection.Detection{}
	}
	if out.Events == nil {
		out.Events = []ClassEvent{}
	}
	if out.LabelCounts == nil {
		out.LabelCounts = []LabelCount{}
	}
	return out
}

// Replay folds a RunLog through a fresh pipeline. Used to check that the
// event table is reproducible from the raw log.
func Replay(runLog []detection.Detection, policy OrderPolicy) (Result, error) {
	p := NewPipeline(policy)
	for i, d := range runLog {
		if err := p.Record(d); err != nil {
			return Result{}, fmt.Errorf("replay detection %d: %w", i, err)
		}
	}
	return p.Finalize(), nil
}
