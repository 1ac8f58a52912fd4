package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SessionView is the read model of the session.
type SessionView struct {
	Phone   string              `json:"phone_number"`
	User    *domain.UserProfile `json:"user,omitempty"`
	IsGuest bool                `json:"is_guest"`
}

// Session owns the local user session: the phone number and, once verified, the profile.
type Session struct {
	mu      sync.RWMutex
	store   store.KeyValueStore
	backend Backend
	logger  *slog.Logger

	phone string
	user  *domain.UserProfile
}

func NewSession(kv store.KeyValueStore, backend Backend, logger *slog.Logger) *Session {
	return &Session{
		store:   kv,
		backend: backend,
		logger:  loggerOrDefault(logger).With("component", "session"),
	}
}

// Load restores the persisted profile and phone.
func (s *Session) Load(ctx context.Context) error {
	var profile domain.UserProfile
	err := store.GetJSON(ctx, s.store, domain.KeyUserData, &profile)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
	default:
		s.logger.Warn("failed to load user data", "err", err)
	}

	phone, phoneErr := s.store.Get(ctx, domain.KeyUserPhone)
	if phoneErr != nil && !errors.Is(phoneErr, store.ErrNotFound) {
		return fmt.Errorf("failed to load user phone: %w", phoneErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.user = &profile
	}
	s.phone = phone
	if s.phone == "" && s.user != nil {
		s.phone = s.user.Phone
	}
	return nil
}

// View returns a snapshot of the session.
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := SessionView{Phone: s.phone, IsGuest: s.user == nil}
	if s.user != nil {
		u := *s.user
		view.User = &u
	}
	return view
}

// Phone returns the session phone number, verified or provisional.
func (s *Session) Phone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phone
}

// IsGuest is true until OTP verification succeeds.
func (s *Session) IsGuest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user == nil
}

// SetGuestPhone records the guest's self-entered number.
func (s *Session) SetGuestPhone(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if !domain.ValidMSISDN(phone) {
		return ValidationErrors{"phone_number": "Please enter a valid phone number (format: +254712345678)"}
	}
	if err := s.store.Set(ctx, domain.KeyUserPhone, phone); err != nil {
		return fmt.Errorf("failed to persist phone: %w", err)
	}
	s.mu.Lock()
	s.phone = phone
	s.mu.Unlock()
	return nil
}

// CompleteVerification stores the verified profile and replaces the phone.
func (s *Session) CompleteVerification(ctx context.Context, phone string, profile domain.UserProfile) error {
	if profile.Phone == "" {
		profile.Phone = phone
	}
	if err := store.SetJSON(ctx, s.store, domain.KeyUserData, profile); err != nil {
		return fmt.Errorf("failed to persist user data: %w", err)
	}
	if err := s.store.Set(ctx, domain.KeyUserPhone, phone); err != nil {
		return fmt.Errorf("failed to persist phone: %w", err)
	}
	s.mu.Lock()
	s.user = &profile
	s.phone = phone
	s.mu.Unlock()
	s.logger.Info("session verified", "phone", phone)
	return nil
}

// Logout drops the profile. The phone is kept for the next guest flow.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, domain.KeyUserData); err != nil {
		return fmt.Errorf("failed to clear user data: %w", err)
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return nil
}

// ProfileInput is the editable part of the profile.
type ProfileInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	IDNumber string `json:"id_number"`
	Address  string `json:"address"`
}

// UpdateProfile validates and submits profile edits, then merges the server's answer
// over the cached profile.
func (s *Session) UpdateProfile(ctx context.Context, in ProfileInput) (domain.UserProfile, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	s.mu.RLock()
	current := s.user
	phone := s.phone
	s.mu.RUnlock()

	if current == nil {
		return domain.UserProfile{}, "", ValidationErrors{"phone": "Please verify your phone number first"}
	}
	if in.Phone == "" {
		in.Phone = phone
	}
	if in.Phone == "" {
		in.Phone = current.Phone
	}

	errs := ValidationErrors{}
	if in.Name == "" {
		errs["name"] = "Please enter your name"
	}
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		errs["email"] = "Please enter a valid email address"
	}
	if !domain.ValidMSISDN(in.Phone) {
		errs["phone"] = "Please enter a valid phone number (format: +254712345678)"
	}
	if len(errs) > 0 {
		return domain.UserProfile{}, "", errs
	}

	updated, message, err := s.backend.UpdateProfile(ctx, domain.ProfileUpdate{
		Name:        in.Name,
		Email:       in.Email,
		IDNumber:    strings.TrimSpace(in.IDNumber),
		Address:     strings.TrimSpace(in.Address),
		PhoneNumber: in.Phone,
	})
	if err != nil {
		return domain.UserProfile{}, "", err
	}

	merged := current.Merge(*updated)
	if err := store.SetJSON(ctx, s.store, domain.KeyUserData, merged); err != nil {
		return domain.UserProfile{}, "", fmt.Errorf("failed to persist user data: %w", err)
	}
	s.mu.Lock()
	s.user = &merged
	s.mu.Unlock()
	return merged, message, nil
}
