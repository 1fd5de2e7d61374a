package models

// Provider identifies a model gateway family. Each provider maps to one
// client implementation with its own credential set and transport.
type Provider string

const (
	ProviderUnified     Provider = "unified"     // shared gateway, bearer token, OpenAI-compatible
	ProviderSiliconFlow Provider = "siliconflow" // SiliconFlow gateway, bearer token, OpenAI-compatible
	ProviderVolc        Provider = "volcengine"  // Volcengine, HMAC-signed requests
)

// Modality describes what a model produces or consumes.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalityImage  Modality = "image"
	ModalityVision Modality = "vision"
	ModalitySpeech Modality = "speech"
)

// ModelConfig is an immutable model selection. Fallback forms a singly-linked
// chain; traversal is capped by the registry, never here.
type ModelConfig struct {
	Provider    Provider     `json:"provider" bson:"provider"`
	Model       string       `json:"model" bson:"model"`
	Modality    Modality     `json:"modality" bson:"modality"`
	Temperature float64      `json:"temperature,omitempty" bson:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty" bson:"max_tokens,omitempty"`
	Fallback    *ModelConfig `json:"fallback,omitempty" bson:"fallback,omitempty"`
}

// SkillModelMapping assigns models to a skill, one per modality. Text is
// always present; the rest are optional capabilities.
type SkillModelMapping struct {
	Text   ModelConfig  `json:"text" bson:"text"`
	Vision *ModelConfig `json:"vision,omitempty" bson:"vision,omitempty"`
	Image  *ModelConfig `json:"image,omitempty" bson:"image,omitempty"`
	Speech *ModelConfig `json:"speech,omitempty" bson:"speech,omitempty"`
}

// SkillModelFile is the on-disk skill model configuration
// (skill_models.json), analogous to a providers config file.
type SkillModelFile struct {
	Default SkillModelMapping            `json:"default"`
	Skills  map[string]SkillModelMapping `json:"skills"`
}
