package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultTutorModel is used when neither the catalogue nor the client config names one
const DefaultTutorModel = "google/gemini-2.5-flash"

// Model is one entry of the tutor model catalogue
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Vision   bool   `json:"vision"`
}

// ModelsConfig is the catalogue of tutor models a student may pick with --model
type ModelsConfig struct {
	models []Model
}

// NewModelsConfig reads a JSON array of models from configPath
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(models))
	for i, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model %d has no id", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("model %s listed twice", m.ID)
		}
		seen[m.ID] = true
	}
	if len(models) == 0 {
		return nil, errors.New("model catalogue is empty")
	}

	return &ModelsConfig{models: models}, nil
}

// LoadModelsConfig reads the catalogue at path. Without a path the catalogue
// holds only defaultModel, assumed to accept images.
func LoadModelsConfig(path, defaultModel string) (*ModelsConfig, error) {
	if path != "" {
		return NewModelsConfig(path)
	}
	if defaultModel == "" {
		defaultModel = DefaultTutorModel
	}
	return &ModelsConfig{models: []Model{{ID: defaultModel, Name: defaultModel, Vision: true}}}, nil
}

func (mc *ModelsConfig) find(modelID string) (Model, bool) {
	for _, model := range mc.models {
		if model.ID == modelID {
			return model, true
		}
	}
	return Model{}, false
}

// GetAvailableModels returns the catalogue in file order
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// IsValidModel reports whether modelID is in the catalogue
func (mc *ModelsConfig) IsValidModel(modelID string) bool {
	_, ok := mc.find(modelID)
	return ok
}

// SupportsVision reports whether modelID accepts image attachments
func (mc *ModelsConfig) SupportsVision(modelID string) bool {
	model, ok := mc.find(modelID)
	return ok && model.Vision
}

// GetDefaultModel returns the first catalogue entry
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].ID
	}
	return DefaultTutorModel
}
