package gesture

// Stabilizer debounces per-frame gesture classifications into a stable
// confirmed gesture. A new gesture is confirmed only when the history window
// is full and one label holds a clear majority; each confirmation arms a
// frame-count cooldown during which no further change is accepted. The
// two-stage design trades a few frames of latency for command stability, so
// a single misclassified frame cannot fire a spurious UI command.
type Stabilizer struct {
	historySize    int
	majorityCount  int
	cooldownFrames int

	history   []Label
	cooldown  int
	confirmed Label
}

// StabilizerOptions configures the temporal validation window.
type StabilizerOptions struct {
	HistorySize    int // frames in the smoothing window
	MajorityCount  int // matching frames required within the window
	CooldownFrames int // frames to hold after a confirmation
}

// DefaultStabilizerOptions returns the production tuning: a 5-frame window,
// 4-of-5 majority and a 10-frame cooldown.
func DefaultStabilizerOptions() StabilizerOptions {
	return StabilizerOptions{
		HistorySize:    5,
		MajorityCount:  4,
		CooldownFrames: 10,
	}
}

// NewStabilizer creates a stabilizer for one connection.
func NewStabilizer(opts StabilizerOptions) *Stabilizer {
	if opts.HistorySize <= 0 {
		opts = DefaultStabilizerOptions()
	}
	return &Stabilizer{
		historySize:    opts.HistorySize,
		majorityCount:  opts.MajorityCount,
		cooldownFrames: opts.CooldownFrames,
		history:        make([]Label, 0, opts.HistorySize),
		confirmed:      Unknown,
	}
}

// Observe feeds one raw classification into the smoothing window and returns
// the currently confirmed gesture. While the cooldown is armed the window is
// not advanced and the confirmed gesture is returned unchanged.
func (s *Stabilizer) Observe(label Label) Label {
	if s.cooldown > 0 {
		s.cooldown--
		return s.confirmed
	}

	if len(s.history) == s.historySize {
		s.history = s.history[1:]
	}
	s.history = append(s.history, label)

	if len(s.history) < s.historySize {
		return s.confirmed
	}

	best, count := mostFrequent(s.history)
	if count >= s.majorityCount {
		s.confirmed = best
		s.cooldown = s.cooldownFrames
	}
	return s.confirmed
}

// Reset clears the smoothing window after a frame with no detected hand.
// The confirmed gesture is deliberately preserved; only the vote restarts.
func (s *Stabilizer) Reset() {
	s.history = s.history[:0]
}

// Confirmed returns the current confirmed gesture without advancing state.
func (s *Stabilizer) Confirmed() Label {
	return s.confirmed
}

func mostFrequent(labels []Label) (Label, int) {
	counts := make(map[Label]int, len(labels))
	best := Unknown
	bestCount := 0
	for _, l := range labels {
		counts[l]++
		if counts[l] > bestCount {
			best = l
			bestCount = counts[l]
		}
	}
	return best, bestCount
}
