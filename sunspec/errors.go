package sunspec

import "fmt"

// ResolutionError is raised when a point's scale-factor reference cannot
// be resolved at load time: not an integer literal, not a same-block
// sunssf point, and (for repeating blocks) not a fixed-block sunssf point.
type ResolutionError struct {
	Model int
	Point string
	Ref   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("sunspec: model %d: unable to resolve scale factor %q for point %q", e.Model, e.Ref, e.Point)
}

// ScanAborted is returned when a scan's progress callback requests
// cancellation.
type ScanAborted struct {
	Reason string
}

func (e *ScanAborted) Error() string { return "sunspec: scan aborted: " + e.Reason }

// NotFound is raised when no candidate base address yields the SunSpec
// signature.
type NotFound struct {
	Reason string
}

func (e *NotFound) Error() string { return "sunspec: " + e.Reason }
