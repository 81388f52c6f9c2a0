package rulesource

import (
	"context"
	"fmt"
	"sync"

	"changeprop/internal/logger"
	"changeprop/pkg/match"
	"changeprop/pkg/metrics"
	"changeprop/pkg/rule"
)

// RegistrySetter is the subset of *executor.Executor a Manager needs:
// swap in a freshly built registry. Accepted as an interface so this
// package never depends on internal/executor directly, mirroring the
// executor.Producer narrow-interface pattern.
type RegistrySetter interface {
	SetRegistry(reg *rule.Registry)
}

// Manager owns the reload path for the active Source: load the
// document, compile it, and atomically hand the result to every
// registered setter. Concurrent reloads are serialized so two
// overlapping reload triggers (an admin API call racing a kafka config
// update) can't interleave their compiled registries.
type Manager struct {
	source    Source
	evaluator match.Evaluator
	logger    logger.Logger

	mu      sync.Mutex
	setters []RegistrySetter
}

func NewManager(source Source, evaluator match.Evaluator, log logger.Logger) *Manager {
	return &Manager{source: source, evaluator: evaluator, logger: log}
}

// Register adds a setter that should receive every reloaded registry.
// Called once per consumer/executor wiring at startup, before the
// first Reload.
func (m *Manager) Register(setter RegistrySetter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setters = append(m.setters, setter)
}

// Reload loads the current document from source, compiles it, and
// swaps it into every registered setter. A failed load or compile
// leaves the previously active registry in place — a bad edit must
// never tear down a working worker (SPEC_FULL.md §3).
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("rulesource: reload failed to load document: %w", err)
	}

	reg, err := Build(doc, m.evaluator)
	if err != nil {
		return fmt.Errorf("rulesource: reload failed to compile document: %w", err)
	}

	for _, setter := range m.setters {
		setter.SetRegistry(reg)
	}

	for _, topic := range reg.Topics() {
		metrics.SetActiveRules(topic, len(reg.RulesForTopic(topic)))
	}

	m.logger.InfowCtx(ctx, "rule registry reloaded", "rule_count", reg.Size(), "topic_count", len(reg.Topics()))
	return nil
}
