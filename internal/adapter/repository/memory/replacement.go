package memory

import (
	"encoding/json"
	"sort"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

const replacementsKey = "replacements"

// ReplacementRepository implements ports.ReplacementRepository using Fyne preferences.
// All rules live in one JSON array sorted by target id.
//
// Thread-safe: All operations protected by sync.RWMutex.
type ReplacementRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
}

// NewReplacementRepository creates a new replacement rule repository.
func NewReplacementRepository(prefs fyne.Preferences) *ReplacementRepository {
	return &ReplacementRepository{prefs: prefs}
}

// Save persists a rule, replacing any rule with the same target.
func (r *ReplacementRepository) Save(rule domain.ReplacementRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules, err := r.loadAll()
	if err != nil {
		return err
	}
	rules = lo.Reject(rules, func(existing domain.ReplacementRule, _ int) bool {
		return existing.TargetSongID == rule.TargetSongID
	})
	return r.saveAll(append(rules, rule))
}

// Delete removes the rule for the target.
func (r *ReplacementRepository) Delete(targetSongID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules, err := r.loadAll()
	if err != nil {
		return err
	}
	kept := lo.Reject(rules, func(existing domain.ReplacementRule, _ int) bool {
		return existing.TargetSongID == targetSongID
	})
	if len(kept) == len(rules) {
		return nil
	}
	return r.saveAll(kept)
}

// LoadAll retrieves all saved rules sorted by target id.
func (r *ReplacementRepository) LoadAll() ([]domain.ReplacementRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.loadAll()
}

// loadAll must be called with lock held.
func (r *ReplacementRepository) loadAll() ([]domain.ReplacementRule, error) {
	data := r.prefs.String(replacementsKey)
	if data == "" {
		return []domain.ReplacementRule{}, nil
	}

	var rules []domain.ReplacementRule
	if err := json.Unmarshal([]byte(data), &rules); err != nil {
		return nil, domain.NewRepositoryError("load", "replacement", "failed to unmarshal rules", err)
	}
	return rules, nil
}

// saveAll must be called with lock held.
func (r *ReplacementRepository) saveAll(rules []domain.ReplacementRule) error {
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].TargetSongID < rules[j].TargetSongID
	})

	data, err := json.Marshal(rules)
	if err != nil {
		return domain.NewRepositoryError("save", "replacement", "failed to marshal rules", err)
	}
	r.prefs.SetString(replacementsKey, string(data))
	return nil
}

// Verify interface implementation
var _ ports.ReplacementRepository = (*ReplacementRepository)(nil)
