package models

// ChatMessage is a single message in an OpenAI-style conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// ImageRef references an image attachment, either by remote URL or as
// inline base64 data. Exactly one of the two should be set.
type ImageRef struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

// DispatchRequest is the inbound contract of the orchestrator.
type DispatchRequest struct {
	SkillID      string        `json:"skill_id"`
	Message      string        `json:"message"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Attachments  []ImageRef    `json:"attachments,omitempty"`
	History      []ChatMessage `json:"history,omitempty"`

	// ModelOverride lets the caller pin a specific text model from the
	// static catalog instead of the skill's configured one.
	ModelOverride string `json:"model_override,omitempty"`

	// ShopID + KnowledgeQuery enable knowledge retrieval before generation.
	ShopID         string `json:"shop_id,omitempty"`
	KnowledgeQuery string `json:"knowledge_query,omitempty"`
}

// DispatchResult is the outbound contract of the orchestrator.
type DispatchResult struct {
	Content  string   `json:"content"`
	Model    string   `json:"model"`
	Provider Provider `json:"provider"`
}
