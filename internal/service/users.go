// users.go — сервис локальных дополнений ролей (role overrides).
// Роли приходят из групп Keycloak; override позволяет администратору
// поднять роль пользователя локально, не трогая IdP. Работает только
// с БД: данные самого пользователя берутся из JWT claims.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/domain/rbac"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// UserService — сервис управления role overrides.
type UserService struct {
	roleRepo repository.RoleOverrideRepository
	logger   *slog.Logger
}

// NewUserService создаёт сервис управления role overrides.
func NewUserService(roleRepo repository.RoleOverrideRepository, logger *slog.Logger) *UserService {
	return &UserService{
		roleRepo: roleRepo,
		logger:   logger.With(slog.String("component", "user_service")),
	}
}

// ListOverrides возвращает все overrides с общим числом для пагинации.
func (s *UserService) ListOverrides(ctx context.Context, limit, offset int) ([]*model.RoleOverride, int, error) {
	overrides, err := s.roleRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка role overrides: %w", err)
	}
	total, err := s.roleRepo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт role overrides: %w", err)
	}
	return overrides, total, nil
}

// SetOverride устанавливает дополнение роли пользователю.
func (s *UserService) SetOverride(ctx context.Context, keycloakUserID, username, role, createdBy string) (*model.RoleOverride, error) {
	if !rbac.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	ro := &model.RoleOverride{
		KeycloakUserID: keycloakUserID,
		Username:       username,
		AdditionalRole: role,
		CreatedBy:      createdBy,
	}
	if err := s.roleRepo.Upsert(ctx, ro); err != nil {
		return nil, fmt.Errorf("установка role override: %w", err)
	}

	s.logger.Info("Role override установлен",
		slog.String("keycloak_user_id", keycloakUserID),
		slog.String("role", role),
		slog.String("created_by", createdBy),
	)
	return ro, nil
}

// DeleteOverride удаляет дополнение роли пользователя.
func (s *UserService) DeleteOverride(ctx context.Context, keycloakUserID string) error {
	err := s.roleRepo.Delete(ctx, keycloakUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление role override: %w", err)
	}

	s.logger.Info("Role override удалён",
		slog.String("keycloak_user_id", keycloakUserID),
	)
	return nil
}

// RoleOverride возвращает дополнительную роль пользователя или nil.
// Используется middleware аутентификации при вычислении effective role.
func (s *UserService) RoleOverride(ctx context.Context, keycloakUserID string) (*string, error) {
	ro, err := s.roleRepo.GetByKeycloakUserID(ctx, keycloakUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение role override: %w", err)
	}
	return &ro.AdditionalRole, nil
}
