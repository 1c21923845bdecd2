package settings

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Setting keys and defaults. Thresholds are percent points.
const (
	KeyAlertThreshold      = "alert_threshold"
	KeyCalculatorTolerance = "calculator_tolerance"

	DefaultAlertThreshold      = 5.0
	DefaultCalculatorTolerance = 5.0
)

// UserSettings holds the user-tunable preferences. Missing rows read as
// defaults, so a fresh database behaves as if defaults were saved.
type UserSettings struct {
	AlertThreshold      float64 `json:"alert_threshold"`
	CalculatorTolerance float64 `json:"calculator_tolerance"`
}

// UserSettingsUpdate carries a partial update. Nil fields are unchanged.
type UserSettingsUpdate struct {
	AlertThreshold      *float64 `json:"alert_threshold"`
	CalculatorTolerance *float64 `json:"calculator_tolerance"`
}

// Service provides typed access to user settings.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// Get returns the current user settings, with defaults for unset keys.
func (s *Service) Get() (*UserSettings, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("settings repository not available")
	}

	alert, err := s.repo.GetFloat(KeyAlertThreshold, DefaultAlertThreshold)
	if err != nil {
		return nil, err
	}

	tolerance, err := s.repo.GetFloat(KeyCalculatorTolerance, DefaultCalculatorTolerance)
	if err != nil {
		return nil, err
	}

	return &UserSettings{
		AlertThreshold:      alert,
		CalculatorTolerance: tolerance,
	}, nil
}

// Update applies a partial update and returns the resulting settings.
// An update with no fields set is rejected.
func (s *Service) Update(update UserSettingsUpdate) (*UserSettings, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("settings repository not available")
	}
	if update.AlertThreshold == nil && update.CalculatorTolerance == nil {
		return nil, fmt.Errorf("no settings to update")
	}

	if update.AlertThreshold != nil {
		if *update.AlertThreshold < 0 {
			return nil, fmt.Errorf("alert threshold must not be negative")
		}
		if err := s.repo.SetFloat(KeyAlertThreshold, *update.AlertThreshold); err != nil {
			return nil, err
		}
	}

	if update.CalculatorTolerance != nil {
		if *update.CalculatorTolerance < 0 {
			return nil, fmt.Errorf("calculator tolerance must not be negative")
		}
		if err := s.repo.SetFloat(KeyCalculatorTolerance, *update.CalculatorTolerance); err != nil {
			return nil, err
		}
	}

	return s.Get()
}
