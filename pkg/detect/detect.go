// Package detect turns raw object-detection model output into the stable
// JSON payload shipped to detection subscribers.
package detect

import (
	"context"
	"time"
)

const (
	ClassPerson     = "person"
	ClassSportsBall = "sports ball"

	// DefaultThreshold is the minimum confidence a raw detection needs to
	// survive filtering.
	DefaultThreshold = 0.5
)

// Detection is one filtered box in a frame.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBoxXYXY   [4]float64 `json:"bbox_xyxy"`
}

// FrameSize records the dimensions of the frame the boxes were computed on.
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Payload is the wire shape published per analyzed frame.
type Payload struct {
	TS         float64     `json:"ts"`
	Frame      FrameSize   `json:"frame"`
	Detections []Detection `json:"detections"`
}

// Frame is a single video frame handed to a Model.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Model produces raw, unfiltered detections for a frame. Implementations
// wrap an inference backend; tests supply a fake.
type Model interface {
	Predict(ctx context.Context, frame Frame) ([]Detection, error)
}

// Filter drops detections below the confidence threshold or outside the
// allowed class set. A nil or empty class set keeps every class.
type Filter struct {
	Threshold float64
	Classes   map[string]struct{}
}

// DefaultFilter keeps only the classes the commentary cares about.
func DefaultFilter() Filter {
	return Filter{
		Threshold: DefaultThreshold,
		Classes: map[string]struct{}{
			ClassPerson:     {},
			ClassSportsBall: {},
		},
	}
}

// Apply returns the detections that pass the filter, preserving order.
// The result is never nil so the payload marshals as [] rather than null.
func (f Filter) Apply(raw []Detection) []Detection {
	kept := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < f.Threshold {
			continue
		}
		if len(f.Classes) > 0 {
			if _, ok := f.Classes[d.Class]; !ok {
				continue
			}
		}
		kept = append(kept, d)
	}
	return kept
}

// BuildPayload assembles the wire payload for a frame at the given time.
func BuildPayload(frame Frame, detections []Detection, now time.Time) Payload {
	if detections == nil {
		detections = []Detection{}
	}
	return Payload{
		TS:         float64(now.UnixNano()) / float64(time.Second),
		Frame:      FrameSize{Width: frame.Width, Height: frame.Height},
		Detections: detections,
	}
}
