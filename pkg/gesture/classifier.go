package gesture

const (
	// Thumb and index tips closer than this form the OK circle.
	okPinchDistance = 0.05

	// Mean lateral wrist movement above this reads as a wave.
	waveMovementThreshold = 0.02

	// Number of recent samples the wrist movement average runs over.
	wristWindowSize = 10
)

// Classifier turns raw geometric hand features into a gesture label. Rules
// are evaluated in a fixed priority order so overlapping shapes resolve
// deterministically. Wave detection needs short-term wrist movement history,
// so the classifier is stateful and owned by a single connection.
type Classifier struct {
	wristHistory []float64
}

// NewClassifier creates a classifier with an empty movement window.
func NewClassifier() *Classifier {
	return &Classifier{
		wristHistory: make([]float64, 0, wristWindowSize),
	}
}

// Classify maps one raw sample to a gesture label. First matching rule wins.
func (c *Classifier) Classify(sample RawSample) Label {
	avgMovement := c.trackWrist(sample.WristLateralMove)

	extended := sample.extendedCount()
	thumb := sample.Fingers[0]
	index := sample.Fingers[1]
	middle := sample.Fingers[2]
	ring := sample.Fingers[3]
	pinky := sample.Fingers[4]

	switch {
	case extended == 0:
		return Fist
	case thumb && extended == 1:
		return ThumbsUp
	case sample.ThumbIndexDistance < okPinchDistance && extended >= 3:
		return OK
	case index && middle && !ring && !pinky:
		return Peace
	case extended == 5 && avgMovement > waveMovementThreshold:
		return Tchao
	case extended == 5:
		return OpenPalm
	case index && extended == 1:
		return Pointing
	case index && middle && extended == 2:
		return TwoFingers
	default:
		return Unknown
	}
}

// trackWrist appends the latest lateral movement to the rolling window and
// returns the window mean.
func (c *Classifier) trackWrist(movement float64) float64 {
	if len(c.wristHistory) == wristWindowSize {
		c.wristHistory = c.wristHistory[1:]
	}
	c.wristHistory = append(c.wristHistory, movement)

	sum := 0.0
	for _, m := range c.wristHistory {
		sum += m
	}
	return sum / float64(len(c.wristHistory))
}
