package perception

import (
	"context"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/errors"
)

// HealthProber is anything with a collaborator liveness probe.
type HealthProber interface {
	Health(ctx context.Context) HealthStatus
}

// Registry holds the configured perception adapters by name and serves them
// to the stream orchestrator and the health endpoint.
type Registry struct {
	logger        *logrus.Logger
	vision        map[string]VisionAdapter
	speech        map[string]SpeechAdapter
	probes        map[string]HealthProber
	defaultVision string
	defaultSpeech string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		logger: logger,
		vision: make(map[string]VisionAdapter),
		speech: make(map[string]SpeechAdapter),
		probes: make(map[string]HealthProber),
	}
}

// RegisterVision adds a vision adapter; the first registration becomes the
// default.
func (r *Registry) RegisterVision(adapter VisionAdapter) {
	r.vision[adapter.Name()] = adapter
	r.probes[adapter.Name()] = adapter
	if r.defaultVision == "" {
		r.defaultVision = adapter.Name()
	}
	r.logger.WithField("adapter", adapter.Name()).Info("Registered vision adapter")
}

// RegisterSpeech adds a speech adapter; the first registration becomes the
// default.
func (r *Registry) RegisterSpeech(adapter SpeechAdapter) {
	r.speech[adapter.Name()] = adapter
	r.probes[adapter.Name()] = adapter
	if r.defaultSpeech == "" {
		r.defaultSpeech = adapter.Name()
	}
	r.logger.WithField("adapter", adapter.Name()).Info("Registered speech adapter")
}

// RegisterProbe adds a standalone liveness probe that is not itself an
// adapter, such as the optional emotion collaborator.
func (r *Registry) RegisterProbe(name string, probe HealthProber) {
	r.probes[name] = probe
}

// Vision returns the default vision adapter.
func (r *Registry) Vision() (VisionAdapter, error) {
	adapter, ok := r.vision[r.defaultVision]
	if !ok {
		return nil, errors.ErrNoAdapterAvailable
	}
	return adapter, nil
}

// Speech returns the default speech adapter.
func (r *Registry) Speech() (SpeechAdapter, error) {
	adapter, ok := r.speech[r.defaultSpeech]
	if !ok {
		return nil, errors.ErrNoAdapterAvailable
	}
	return adapter, nil
}

// AggregateHealth probes every registered collaborator. An offline
// collaborator is reported as such; the aggregation itself never fails.
func (r *Registry) AggregateHealth(ctx context.Context) map[string]HealthStatus {
	statuses := make(map[string]HealthStatus, len(r.probes))
	for name, probe := range r.probes {
		statuses[name] = probe.Health(ctx)
	}
	return statuses
}
