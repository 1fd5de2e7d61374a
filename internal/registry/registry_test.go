package registry

import (
	"sync"
	"testing"

	"shopkeeper/internal/models"
)

func testFile() *models.SkillModelFile {
	return &models.SkillModelFile{
		Default: models.SkillModelMapping{
			Text: models.ModelConfig{Provider: models.ProviderUnified, Model: "default-text", Modality: models.ModalityText},
		},
		Skills: map[string]models.SkillModelMapping{
			"caption-writer": {
				Text: models.ModelConfig{Provider: models.ProviderUnified, Model: "caption-text", Modality: models.ModalityText},
				Vision: &models.ModelConfig{
					Provider: models.ProviderSiliconFlow, Model: "caption-vision", Modality: models.ModalityVision,
				},
			},
		},
	}
}

func TestResolvePrecedence(t *testing.T) {
	r := New(testFile())

	if got := r.Resolve("caption-writer").Text.Model; got != "caption-text" {
		t.Errorf("Expected static table entry, got %s", got)
	}
	if got := r.Resolve("unknown-skill").Text.Model; got != "default-text" {
		t.Errorf("Expected static default, got %s", got)
	}

	r.ReloadOverrides(map[string]models.SkillModelMapping{
		"caption-writer": {
			Text: models.ModelConfig{Provider: models.ProviderSiliconFlow, Model: "override-text", Modality: models.ModalityText},
		},
	})

	if got := r.Resolve("caption-writer").Text.Model; got != "override-text" {
		t.Errorf("Expected override to win, got %s", got)
	}
	if got := r.Resolve("unknown-skill").Text.Model; got != "default-text" {
		t.Errorf("Expected non-overridden skills untouched, got %s", got)
	}

	r.ReloadOverrides(nil)
	if got := r.Resolve("caption-writer").Text.Model; got != "caption-text" {
		t.Errorf("Expected static entry after clearing overrides, got %s", got)
	}
}

func TestResolveHardcodedDefault(t *testing.T) {
	r := New(&models.SkillModelFile{})

	m := r.Resolve("anything")
	if m.Text.Model != "claude-haiku" {
		t.Errorf("Expected hard-coded low-cost default, got %s", m.Text.Model)
	}
	if m.Text.Provider != models.ProviderUnified {
		t.Errorf("Unexpected default provider: %s", m.Text.Provider)
	}
}

func TestFallbackChainLinear(t *testing.T) {
	cfg := &models.ModelConfig{
		Provider: models.ProviderUnified, Model: "primary",
		Fallback: &models.ModelConfig{
			Provider: models.ProviderSiliconFlow, Model: "secondary",
			Fallback: &models.ModelConfig{Provider: models.ProviderUnified, Model: "tertiary"},
		},
	}

	chain := FallbackChain(cfg)
	if len(chain) != 3 {
		t.Fatalf("Expected chain of 3, got %d", len(chain))
	}
	if chain[0].Model != "primary" || chain[2].Model != "tertiary" {
		t.Errorf("Unexpected chain order: %+v", chain)
	}
}

func TestFallbackChainCycle(t *testing.T) {
	a := &models.ModelConfig{Provider: models.ProviderUnified, Model: "a"}
	b := &models.ModelConfig{Provider: models.ProviderUnified, Model: "b"}
	a.Fallback = b
	b.Fallback = a

	chain := FallbackChain(a)
	if len(chain) != 2 {
		t.Fatalf("Expected cycle to truncate at 2, got %d", len(chain))
	}
}

func TestFallbackChainDepthCap(t *testing.T) {
	// Build a 20-deep chain of distinct models.
	head := &models.ModelConfig{Provider: models.ProviderUnified, Model: "m0"}
	node := head
	for i := 1; i < 20; i++ {
		next := &models.ModelConfig{Provider: models.ProviderUnified, Model: "m" + string(rune('a'+i))}
		node.Fallback = next
		node = next
	}

	chain := FallbackChain(head)
	if len(chain) != MaxFallbackDepth {
		t.Errorf("Expected chain capped at %d, got %d", MaxFallbackDepth, len(chain))
	}
}

func TestLookupModel(t *testing.T) {
	file := testFile()
	file.Skills["caption-writer"] = models.SkillModelMapping{
		Text: models.ModelConfig{
			Provider: models.ProviderUnified, Model: "caption-text",
			Fallback: &models.ModelConfig{Provider: models.ProviderSiliconFlow, Model: "caption-backup"},
		},
	}
	r := New(file)

	if cfg, ok := r.LookupModel("caption-backup"); !ok || cfg.Provider != models.ProviderSiliconFlow {
		t.Errorf("Expected to find fallback model, got %v %v", cfg, ok)
	}
	if _, ok := r.LookupModel("nonexistent"); ok {
		t.Error("Expected lookup miss for unknown model")
	}
}

func TestConcurrentResolveAndReload(t *testing.T) {
	r := New(testFile())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m := r.Resolve("caption-writer")
				if m.Text.Model == "" {
					t.Error("Observed empty mapping during reload")
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				r.ReloadOverrides(map[string]models.SkillModelMapping{
					"caption-writer": {
						Text: models.ModelConfig{Provider: models.ProviderUnified, Model: "swapped"},
					},
				})
				r.ReloadOverrides(nil)
			}
		}()
	}
	wg.Wait()
}
