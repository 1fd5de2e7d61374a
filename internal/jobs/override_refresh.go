package jobs

import (
	"context"
	"log"

	"shopkeeper/internal/registry"
	"shopkeeper/internal/services"
)

// OverrideRefresher periodically reloads the dynamic skill-model override map
// from the settings store into the registry, so admin edits take effect
// without a restart.
type OverrideRefresher struct {
	settings *services.SettingsService
	registry *registry.Registry
}

// NewOverrideRefresher creates the refresher job
func NewOverrideRefresher(settings *services.SettingsService, reg *registry.Registry) *OverrideRefresher {
	return &OverrideRefresher{settings: settings, registry: reg}
}

// Run loads the override map and swaps it into the registry. A load failure
// leaves the current map in place.
func (o *OverrideRefresher) Run(ctx context.Context) error {
	overrides, err := o.settings.GetSkillModelOverrides(ctx)
	if err != nil {
		log.Printf("⚠️ [OVERRIDE-REFRESH] Keeping current override map: %v", err)
		return err
	}

	o.registry.ReloadOverrides(overrides)
	return nil
}
