package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopkeeper/internal/database"
	"shopkeeper/internal/models"
)

// SettingKeySkillModelOverrides stores the dynamic skill-to-model override
// map as a JSON blob.
const SettingKeySkillModelOverrides = "skill_model_overrides"

// SettingsService handles system-wide settings persisted in MongoDB
type SettingsService struct {
	db *database.MongoDB
}

// NewSettingsService creates a settings service
func NewSettingsService(db *database.MongoDB) *SettingsService {
	return &SettingsService{db: db}
}

func (s *SettingsService) collection() *mongo.Collection {
	return s.db.Collection(database.CollectionSettings)
}

type settingDoc struct {
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Get retrieves a setting by key. Not found is not an error.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	var doc settingDoc
	err := s.collection().FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return doc.Value, nil
}

// Set updates or creates a setting
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	_, err := s.collection().UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"value": value, "updatedAt": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// GetSkillModelOverrides loads the dynamic override map. A missing setting
// returns an empty map.
func (s *SettingsService) GetSkillModelOverrides(ctx context.Context) (map[string]models.SkillModelMapping, error) {
	raw, err := s.Get(ctx, SettingKeySkillModelOverrides)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return map[string]models.SkillModelMapping{}, nil
	}

	var overrides map[string]models.SkillModelMapping
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse skill model overrides: %w", err)
	}
	return overrides, nil
}

// SetSkillModelOverrides persists the dynamic override map
func (s *SettingsService) SetSkillModelOverrides(ctx context.Context, overrides map[string]models.SkillModelMapping) error {
	data, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to marshal skill model overrides: %w", err)
	}
	return s.Set(ctx, SettingKeySkillModelOverrides, string(data))
}
