package gesture

import "time"

// Label identifies a classified hand gesture.
type Label string

const (
	Fist       Label = "FIST"
	OpenPalm   Label = "OPEN_PALM"
	Pointing   Label = "POINTING"
	TwoFingers Label = "TWO_FINGERS"
	Peace      Label = "PEACE"
	ThumbsUp   Label = "THUMBS_UP"
	OK         Label = "OK"
	Tchao      Label = "TCHAO"
	Unknown    Label = "UNKNOWN"
)

// RawSample holds the geometric features extracted from one video frame with
// a detected hand. Index 0 of Fingers is the thumb; the rest follow in
// anatomical order (index, middle, ring, pinky).
type RawSample struct {
	Fingers            [5]bool
	ThumbIndexDistance float64
	WristLateralMove   float64
	Timestamp          time.Time
}

func (s RawSample) extendedCount() int {
	n := 0
	for _, f := range s.Fingers {
		if f {
			n++
		}
	}
	return n
}
