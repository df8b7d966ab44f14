package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

// SettingsStore описывает хранилище настроек магазина.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*model.StoreSettings, error)
	SaveSettings(ctx context.Context, s model.StoreSettings) error
}

// LoadSettings возвращает сохранённые настройки. Если их ещё нет, сохраняет и возвращает seed.
func LoadSettings(ctx context.Context, store SettingsStore, seed model.StoreSettings) (model.StoreSettings, error) {
	s, err := store.GetSettings(ctx)
	if err == nil {
		return *s, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.StoreSettings{}, err
	}

	if err := validateSettings(&seed); err != nil {
		return model.StoreSettings{}, fmt.Errorf("seed settings: %w", err)
	}
	if err := store.SaveSettings(ctx, seed); err != nil {
		return model.StoreSettings{}, err
	}
	return seed, nil
}

// Settings возвращает действующие настройки магазина.
func (s *Service) Settings() model.StoreSettings {
	return s.currentSettings()
}

// UpdateSettings сохраняет настройки и подменяет действующий снимок.
func (s *Service) UpdateSettings(ctx context.Context, next model.StoreSettings) (model.StoreSettings, error) {
	if err := validateSettings(&next); err != nil {
		return model.StoreSettings{}, err
	}
	if err := s.repo.SaveSettings(ctx, next); err != nil {
		return model.StoreSettings{}, err
	}
	if s.settings != nil {
		s.settings.Set(next)
	}
	return next, nil
}

func (s *Service) currentSettings() model.StoreSettings {
	if s.settings == nil {
		return config.DefaultStoreSettings()
	}
	return s.settings.Get()
}

func validateSettings(st *model.StoreSettings) error {
	st.StoreName = strings.TrimSpace(st.StoreName)
	st.Currency = strings.ToLower(strings.TrimSpace(st.Currency))
	st.SupportEmail = validation.NormalizeEmail(st.SupportEmail)

	if st.StoreName == "" {
		return fmt.Errorf("%w: store name is required", ErrInvalidInput)
	}
	if len(st.Currency) != 3 {
		return fmt.Errorf("%w: currency must be an ISO 4217 code", ErrInvalidInput)
	}
	if st.ShippingFee < 0 || st.FreeShippingThreshold < 0 {
		return fmt.Errorf("%w: shipping amounts must not be negative", ErrInvalidInput)
	}
	if st.SupportEmail != "" && !validation.IsValidEmail(st.SupportEmail) {
		return fmt.Errorf("%w: support email", ErrInvalidInput)
	}

	rate, err := pricing.ParseTaxRate(st.TaxRate)
	if err != nil {
		return fmt.Errorf("%w: tax rate must be between 0 and 100", ErrInvalidInput)
	}
	st.TaxRate = rate.String()
	return nil
}
