// Package registry holds the static graph definition: which node tags
// exist, how to rebuild a live node from a persisted tag and payload, and
// where each interrupt point resumes. Graph shape lives here, in code; run
// state lives in snapshots.
package registry

import (
	"log/slog"
	"sync"

	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
)

// Factory rebuilds a node instance from its persisted payload.
type Factory func(payload codec.RawMessage) (domain.Node, error)

// Definition is the registration surface for graph authors. All
// registration happens before runs start; resolution during runs is
// read-only.
type Definition struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	interrupts map[string]string
	logger     *slog.Logger
}

func New(logger *slog.Logger) *Definition {
	if logger == nil {
		logger = slog.Default()
	}
	return &Definition{
		factories:  make(map[string]Factory),
		interrupts: make(map[string]string),
		logger:     logger.With("component", "definition"),
	}
}

// Register binds a node tag to a factory.
func (d *Definition) Register(tag string, factory Factory) error {
	if tag == "" {
		return domain.NewDefinitionError(tag, "tag cannot be empty")
	}
	if factory == nil {
		return domain.NewDefinitionError(tag, "factory cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.factories[tag]; exists {
		d.logger.Warn("node registration conflict", "tag", tag)
		return domain.NewDefinitionError(tag, "tag already registered")
	}

	d.factories[tag] = factory
	d.logger.Debug("node registered", "tag", tag, "total", len(d.factories))
	return nil
}

// RegisterInterrupt declares an interrupt point by tag alone, with its
// single outgoing edge. Resuming a run suspended at this point enters the
// next tag exactly once.
func (d *Definition) RegisterInterrupt(tag, next string) error {
	if tag == "" {
		return domain.NewDefinitionError(tag, "tag cannot be empty")
	}
	if next == "" {
		return domain.NewDefinitionError(tag, "interrupt point needs exactly one outgoing edge")
	}

	if err := d.Register(tag, func(payload codec.RawMessage) (domain.Node, error) {
		point := domain.NewInterruptPoint(tag)
		if len(payload) > 0 {
			if err := codec.Unmarshal(payload, point); err != nil {
				return nil, domain.NewDefinitionError(tag, "interrupt payload does not decode: "+err.Error())
			}
		}
		return point, nil
	}); err != nil {
		return err
	}

	d.mu.Lock()
	d.interrupts[tag] = next
	d.mu.Unlock()

	d.logger.Debug("interrupt point registered", "tag", tag, "next", next)
	return nil
}

// Resolve rebuilds a live node from a persisted tag and payload. An unknown
// tag is a DefinitionError: the graph changed shape between suspension and
// resume, and the stored snapshot must not be touched.
func (d *Definition) Resolve(tag string, payload codec.RawMessage) (domain.Node, error) {
	d.mu.RLock()
	factory, exists := d.factories[tag]
	d.mu.RUnlock()

	if !exists {
		d.logger.Debug("tag not found in definition", "tag", tag)
		return nil, domain.NewDefinitionError(tag, "tag not registered in current graph definition")
	}

	node, err := factory(payload)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, domain.NewDefinitionError(tag, "factory returned nil node")
	}
	return node, nil
}

// ResumeTarget returns the outgoing edge of an interrupt tag.
func (d *Definition) ResumeTarget(tag string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	next, ok := d.interrupts[tag]
	return next, ok
}

// IsInterrupt reports whether the tag names a registered interrupt point.
func (d *Definition) IsInterrupt(tag string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.interrupts[tag]
	return ok
}

// Has reports whether the tag is registered.
func (d *Definition) Has(tag string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.factories[tag]
	return ok
}

// Tags lists every registered tag.
func (d *Definition) Tags() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tags := make([]string, 0, len(d.factories))
	for tag := range d.factories {
		tags = append(tags, tag)
	}
	return tags
}
