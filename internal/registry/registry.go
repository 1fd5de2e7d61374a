package registry

import (
	"log"
	"sync/atomic"

	"shopkeeper/internal/models"
)

// MaxFallbackDepth caps fallback chain traversal. Chains are supposed to be
// acyclic but nothing enforces that structurally, so traversal fails closed.
const MaxFallbackDepth = 8

// fallbackDefault is the hard-coded low-cost mapping used when neither the
// override map nor the static table knows a skill.
var fallbackDefault = models.SkillModelMapping{
	Text: models.ModelConfig{
		Provider: models.ProviderUnified,
		Model:    "claude-haiku",
		Modality: models.ModalityText,
	},
}

// Registry maps skill identifiers to model configurations. The static table
// comes from the skill models file; the dynamic override map is loaded from
// the settings store and takes precedence. Both are swapped atomically so
// concurrent Resolve calls never observe a torn map.
type Registry struct {
	defaults  atomic.Pointer[models.SkillModelFile]
	overrides atomic.Pointer[map[string]models.SkillModelMapping]
}

// New creates a registry from the static skill models file with no overrides.
func New(file *models.SkillModelFile) *Registry {
	r := &Registry{}
	r.defaults.Store(file)
	empty := map[string]models.SkillModelMapping{}
	r.overrides.Store(&empty)
	return r
}

// Resolve returns the mapping for a skill: dynamic overrides first, then the
// static table, then the static default, then the hard-coded low-cost
// default. Pure lookup, no I/O.
func (r *Registry) Resolve(skillID string) models.SkillModelMapping {
	if m, ok := (*r.overrides.Load())[skillID]; ok {
		return m
	}

	file := r.defaults.Load()
	if file != nil {
		if m, ok := file.Skills[skillID]; ok {
			return m
		}
		if file.Default.Text.Model != "" {
			return file.Default
		}
	}

	return fallbackDefault
}

// ReloadOverrides replaces the dynamic override map in one pointer swap.
func (r *Registry) ReloadOverrides(overrides map[string]models.SkillModelMapping) {
	if overrides == nil {
		overrides = map[string]models.SkillModelMapping{}
	}
	r.overrides.Store(&overrides)
	log.Printf("🔄 [REGISTRY] Reloaded %d skill overrides", len(overrides))
}

// ReloadDefaults replaces the static table, for hot reload of the skill
// models file.
func (r *Registry) ReloadDefaults(file *models.SkillModelFile) {
	r.defaults.Store(file)
	log.Printf("🔄 [REGISTRY] Reloaded static skill table (%d skills)", len(file.Skills))
}

// FallbackChain walks a config's fallback pointers and returns
// [primary, fallbacks...]. Traversal is capped at MaxFallbackDepth and stops
// on a repeated provider/model pair, so cyclic chains still return a finite
// list.
func FallbackChain(cfg *models.ModelConfig) []models.ModelConfig {
	chain := make([]models.ModelConfig, 0, 2)
	seen := make(map[string]bool)

	for node := cfg; node != nil && len(chain) < MaxFallbackDepth; node = node.Fallback {
		key := string(node.Provider) + "/" + node.Model
		if seen[key] {
			log.Printf("⚠️ [REGISTRY] Fallback cycle detected at %s, truncating chain", key)
			break
		}
		seen[key] = true
		chain = append(chain, *node)
	}

	return chain
}

// LookupModel finds a text config whose model id matches, scanning overrides,
// the static table, the default, and every fallback chain. Used to validate
// per-request model override strings.
func (r *Registry) LookupModel(modelID string) (*models.ModelConfig, bool) {
	check := func(m models.SkillModelMapping) (*models.ModelConfig, bool) {
		for _, cfg := range FallbackChain(&m.Text) {
			if cfg.Model == modelID {
				c := cfg
				return &c, true
			}
		}
		return nil, false
	}

	for _, m := range *r.overrides.Load() {
		if cfg, ok := check(m); ok {
			return cfg, true
		}
	}

	file := r.defaults.Load()
	if file != nil {
		for _, m := range file.Skills {
			if cfg, ok := check(m); ok {
				return cfg, true
			}
		}
		if cfg, ok := check(file.Default); ok {
			return cfg, true
		}
	}

	return nil, false
}
