package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

// RegisterUser регистрирует нового покупателя.
func (s *Service) RegisterUser(ctx context.Context, email, name, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if !validation.IsValidPassword(password) {
		return nil, fmt.Errorf("%w: password is too short", ErrInvalidInput)
	}
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := model.RoleUser
	if s.opts.AdminEmail != "" && validation.NormalizeEmail(s.opts.AdminEmail) == email {
		role = model.RoleAdmin
	}

	return s.repo.CreateUser(ctx, email, name, hash, role)
}

// AuthenticateUser проверяет адрес и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListUsers возвращает страницу пользователей для административного раздела.
func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]model.User, int, error) {
	return s.repo.ListUsers(ctx, page, limit)
}

// UpdateUserRole меняет роль пользователя.
func (s *Service) UpdateUserRole(ctx context.Context, id int64, role model.Role) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return fmt.Errorf("%w: role", ErrInvalidInput)
	}
	return s.repo.UpdateUserRole(ctx, id, role)
}
