package aggregate

import "fmt"

// SequenceError is returned when a detection regresses in frame index or
// timestamp relative to the last recorded one.
type SequenceError struct {
	PrevFrame     int
	PrevTimestamp float64
	Frame         int
	Timestamp     float64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("out-of-order detection: frame %d at %.3fs after frame %d at %.3fs",
		e.Frame, e.Timestamp, e.PrevFrame, e.PrevTimestamp)
}

// StateError is returned when the pipeline is used in the wrong phase
type StateError struct {
	Op string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("aggregate: %s called after finalize", e.Op)
}
