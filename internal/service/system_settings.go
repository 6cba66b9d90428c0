package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/datatypes"

	"compraprogramada/internal/models"
	"compraprogramada/internal/repository"
)

const (
	// FeaturePurchaseScheduler gates the cron-driven purchase attempts.
	// Explicit API calls are not affected.
	FeaturePurchaseScheduler = "feature.purchase_scheduler"
	// FeatureFiscalStream gates the websocket fiscal feed.
	FeatureFiscalStream = "feature.fiscal_stream"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeaturePurchaseScheduler: true,
		FeatureFiscalStream:      true,
	}
}

type FeatureSwitch struct {
	Key         string `json:"key"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

type SystemSettingsService struct {
	Repo  repository.Repository
	Clock Clock
}

// EnsureDefaultSwitches creates the missing switches with their default.
// Existing values are left as the operator set them.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := clockOrSystem(s.Clock).Now()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil {
		return fallback
	}
	enabled, ok := item.Bool()
	if !ok {
		return fallback
	}
	return enabled
}

// SetEnabled accepts only known switches.
func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if _, ok := DefaultFeatureSwitches()[key]; !ok {
		return invalidInput("Chave de configuracao desconhecida: " + key)
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   clockOrSystem(s.Clock).Now(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

// List returns every known switch with its effective value.
func (s *SystemSettingsService) List(ctx context.Context) ([]FeatureSwitch, error) {
	defaults := DefaultFeatureSwitches()
	values := make(map[string]FeatureSwitch, len(defaults))
	for key, enabled := range defaults {
		values[key] = FeatureSwitch{Key: key, Enabled: enabled, Description: "feature switch"}
	}
	if s != nil && s.Repo != nil {
		items, err := s.Repo.ListSystemSettings(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if _, known := defaults[item.Key]; !known {
				continue
			}
			if enabled, ok := item.Bool(); ok {
				values[item.Key] = FeatureSwitch{Key: item.Key, Enabled: enabled, Description: item.Description}
			}
		}
	}
	out := make([]FeatureSwitch, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
