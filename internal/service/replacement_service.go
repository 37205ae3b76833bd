package service

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// ReplacementTable maps a target song to the rule that intercepts it.
// The in-memory table is authoritative; writes are persisted through the
// repository and a failed persist is logged, not returned.
type ReplacementTable struct {
	// Dependencies (injected)
	logger *slog.Logger
	repo   ports.ReplacementRepository
	bus    ports.EventBus

	rules map[int]domain.ReplacementRule
	mu    sync.RWMutex
}

// NewReplacementTable creates an empty table. Call Load to read saved rules.
func NewReplacementTable(logger *slog.Logger, repo ports.ReplacementRepository, bus ports.EventBus) *ReplacementTable {
	return &ReplacementTable{
		logger: logger.With(slog.String("service", "replacements")),
		repo:   repo,
		bus:    bus,
		rules:  make(map[int]domain.ReplacementRule),
	}
}

// Load replaces the table contents with the saved rules.
func (t *ReplacementTable) Load() error {
	rules, err := t.repo.LoadAll()
	if err != nil {
		return domain.NewServiceError("ReplacementTable", "Load", "failed to load rules", err)
	}

	t.mu.Lock()
	t.rules = lo.SliceToMap(rules, func(r domain.ReplacementRule) (int, domain.ReplacementRule) {
		return r.TargetSongID, r
	})
	t.mu.Unlock()

	t.logger.Debug("replacement rules loaded", slog.Int("count", len(rules)))
	return nil
}

// Get returns the rule for a target.
func (t *ReplacementTable) Get(targetSongID int) (domain.ReplacementRule, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rule, ok := t.rules[targetSongID]
	return rule, ok
}

// Contains reports whether the target has a rule.
func (t *ReplacementTable) Contains(targetSongID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.rules[targetSongID]
	return ok
}

// Set adds or replaces the rule for its target.
func (t *ReplacementTable) Set(rule domain.ReplacementRule) {
	t.mu.Lock()
	t.rules[rule.TargetSongID] = rule
	t.mu.Unlock()

	if err := t.repo.Save(rule); err != nil {
		t.logger.Warn("failed to persist replacement rule",
			slog.Int("target", rule.TargetSongID),
			slog.Any("error", err))
	}
	t.bus.Publish(domain.NewReplacementChangedEvent(rule, false))
}

// Remove deletes the rule for a target. Removing a missing rule is a no-op.
func (t *ReplacementTable) Remove(targetSongID int) {
	t.mu.Lock()
	rule, ok := t.rules[targetSongID]
	delete(t.rules, targetSongID)
	t.mu.Unlock()

	if !ok {
		return
	}
	if err := t.repo.Delete(targetSongID); err != nil {
		t.logger.Warn("failed to delete replacement rule",
			slog.Int("target", targetSongID),
			slog.Any("error", err))
	}
	t.bus.Publish(domain.NewReplacementChangedEvent(rule, true))
}

// All returns every rule sorted by target id.
func (t *ReplacementTable) All() []domain.ReplacementRule {
	t.mu.RLock()
	rules := lo.Values(t.rules)
	t.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].TargetSongID < rules[j].TargetSongID
	})
	return rules
}

// Len returns the number of rules.
func (t *ReplacementTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rules)
}
