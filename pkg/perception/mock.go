package perception

import (
	"context"
	"sync"
)

// MockVisionAdapter is a scriptable vision adapter for tests. Results are
// returned in order; the last one repeats once the script is exhausted.
type MockVisionAdapter struct {
	mu      sync.Mutex
	results []*VisionResult
	err     error
	calls   int
}

// NewMockVisionAdapter creates a mock that returns the given results.
func NewMockVisionAdapter(results ...*VisionResult) *MockVisionAdapter {
	return &MockVisionAdapter{results: results}
}

// Name implements VisionAdapter.
func (m *MockVisionAdapter) Name() string { return "mock-vision" }

// Fail makes every subsequent AnalyzeFrame call return err.
func (m *MockVisionAdapter) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many frames were analyzed.
func (m *MockVisionAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// AnalyzeFrame implements VisionAdapter.
func (m *MockVisionAdapter) AnalyzeFrame(ctx context.Context, frame []byte) (*VisionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) == 0 {
		return &VisionResult{}, nil
	}
	idx := m.calls - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	return m.results[idx], nil
}

// Health implements VisionAdapter.
func (m *MockVisionAdapter) Health(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusHealthy, Service: m.Name()}
}

// MockSpeechAdapter is a scriptable speech adapter for tests.
type MockSpeechAdapter struct {
	mu      sync.Mutex
	result  *SpeechResult
	err     error
	buffers [][]byte
}

// NewMockSpeechAdapter creates a mock returning result for every window.
func NewMockSpeechAdapter(result *SpeechResult) *MockSpeechAdapter {
	return &MockSpeechAdapter{result: result}
}

// Name implements SpeechAdapter.
func (m *MockSpeechAdapter) Name() string { return "mock-speech" }

// Fail makes every subsequent Transcribe call return err.
func (m *MockSpeechAdapter) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Buffers returns a copy of every PCM buffer received so far.
func (m *MockSpeechAdapter) Buffers() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.buffers))
	copy(out, m.buffers)
	return out
}

// Transcribe implements SpeechAdapter.
func (m *MockSpeechAdapter) Transcribe(ctx context.Context, pcm []byte) (*SpeechResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.buffers = append(m.buffers, buf)
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &SpeechResult{}, nil
	}
	out := *m.result
	return &out, nil
}

// Health implements SpeechAdapter.
func (m *MockSpeechAdapter) Health(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusHealthy, Service: m.Name()}
}
