package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"shopkeeper/internal/models"
)

// Config holds all application configuration
type Config struct {
	Port            string
	MongoURI        string
	RedisURL        string
	SkillModelsFile string

	// Unified gateway (bearer token, OpenAI-compatible)
	UnifiedAPIKey   string
	UnifiedEndpoint string

	// SiliconFlow gateway (bearer token, OpenAI-compatible)
	SiliconFlowAPIKey   string
	SiliconFlowEndpoint string

	// Volcengine (AK/SK request signing)
	VolcAccessKeyID     string
	VolcSecretAccessKey string
	VolcHost            string
	VolcRegion          string

	// Embedding provider
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingRPS       float64

	// Outbound HTTP timeout for provider calls
	ProviderTimeout time.Duration

	// How often the dynamic override map is refreshed from the settings store
	OverrideRefreshInterval time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "3001"),
		MongoURI:        getEnv("MONGODB_URI", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		SkillModelsFile: getEnv("SKILL_MODELS_FILE", "skill_models.json"),

		UnifiedAPIKey:   getEnv("UNIFIED_API_KEY", ""),
		UnifiedEndpoint: getEnv("UNIFIED_API_ENDPOINT", "https://api4.mygptlife.com/v1"),

		SiliconFlowAPIKey:   getEnv("SILICONFLOW_API_KEY", ""),
		SiliconFlowEndpoint: getEnv("SILICONFLOW_API_ENDPOINT", "https://api.siliconflow.cn/v1"),

		VolcAccessKeyID:     getEnv("VOLC_ACCESS_KEY_ID", ""),
		VolcSecretAccessKey: getEnv("VOLC_SECRET_ACCESS_KEY", ""),
		VolcHost:            getEnv("VOLC_HOST", "visual.volcengineapi.com"),
		VolcRegion:          getEnv("VOLC_REGION", "cn-north-1"),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-v3"),
		EmbeddingDimension: getIntEnv("EMBEDDING_DIMENSION", 1024),
		EmbeddingRPS:       getFloatEnv("EMBEDDING_RPS", 10),

		ProviderTimeout:         getDurationEnv("PROVIDER_TIMEOUT", 60*time.Second),
		OverrideRefreshInterval: getDurationEnv("OVERRIDE_REFRESH_INTERVAL", 5*time.Minute),
	}
}

// LoadSkillModels loads the skill model configuration from a JSON file
func LoadSkillModels(filePath string) (*models.SkillModelFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill models file: %w", err)
	}

	var file models.SkillModelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse skill models JSON: %w", err)
	}

	if file.Default.Text.Model == "" {
		return nil, fmt.Errorf("skill models file is missing a default text model")
	}

	return &file, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
