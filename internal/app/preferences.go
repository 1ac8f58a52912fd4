package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/internal/store"
)

// Preferences persists the light/dark theme choice.
type Preferences struct {
	store  store.KeyValueStore
	logger *slog.Logger
}

func NewPreferences(kv store.KeyValueStore, logger *slog.Logger) *Preferences {
	return &Preferences{store: kv, logger: loggerOrDefault(logger).With("component", "preferences")}
}

// Theme returns the saved theme, light when unset or unreadable.
func (p *Preferences) Theme(ctx context.Context) string {
	value, err := p.store.Get(ctx, domain.KeyThemePreference)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to load theme preference", "err", err)
		}
		return domain.ThemeLight
	}
	if value == domain.ThemeDark {
		return domain.ThemeDark
	}
	return domain.ThemeLight
}

// ToggleTheme flips the theme. A failed save is logged and the new theme still applies.
func (p *Preferences) ToggleTheme(ctx context.Context) string {
	next := domain.ThemeDark
	if p.Theme(ctx) == domain.ThemeDark {
		next = domain.ThemeLight
	}
	if err := p.store.Set(ctx, domain.KeyThemePreference, next); err != nil {
		p.logger.Warn("failed to save theme preference", "err", err)
	}
	return next
}
