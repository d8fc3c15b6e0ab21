package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// TestSetOverride_InvalidRole проверяет валидацию роли.
func TestSetOverride_InvalidRole(t *testing.T) {
	svc := NewUserService(&mockRoleOverrideRepo{}, slog.Default())

	_, err := svc.SetOverride(context.Background(), "kc-1", "ivanov", "superuser", "admin-1")
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("SetOverride ошибка = %v, хотели ErrInvalidRole", err)
	}
}

// TestSetOverride проверяет передачу данных в репозиторий.
func TestSetOverride(t *testing.T) {
	var saved *model.RoleOverride
	repo := &mockRoleOverrideRepo{
		upsertFn: func(_ context.Context, ro *model.RoleOverride) error {
			saved = ro
			return nil
		},
	}
	svc := NewUserService(repo, slog.Default())

	ro, err := svc.SetOverride(context.Background(), "kc-1", "ivanov", "inspector", "admin-1")
	if err != nil {
		t.Fatalf("SetOverride ошибка: %v", err)
	}
	if saved == nil {
		t.Fatal("Upsert не вызван")
	}
	if ro.AdditionalRole != "inspector" {
		t.Errorf("AdditionalRole = %q, хотели inspector", ro.AdditionalRole)
	}
	if ro.CreatedBy != "admin-1" {
		t.Errorf("CreatedBy = %q, хотели admin-1", ro.CreatedBy)
	}
}

// TestRoleOverride_Absent проверяет, что отсутствие override — не ошибка.
func TestRoleOverride_Absent(t *testing.T) {
	svc := NewUserService(&mockRoleOverrideRepo{}, slog.Default())

	role, err := svc.RoleOverride(context.Background(), "kc-unknown")
	if err != nil {
		t.Fatalf("RoleOverride ошибка: %v", err)
	}
	if role != nil {
		t.Errorf("role = %v, хотели nil", *role)
	}
}

// TestRoleOverride_Present проверяет выдачу установленной роли.
func TestRoleOverride_Present(t *testing.T) {
	repo := &mockRoleOverrideRepo{
		getFn: func(_ context.Context, _ string) (*model.RoleOverride, error) {
			return &model.RoleOverride{KeycloakUserID: "kc-1", AdditionalRole: "admin"}, nil
		},
	}
	svc := NewUserService(repo, slog.Default())

	role, err := svc.RoleOverride(context.Background(), "kc-1")
	if err != nil {
		t.Fatalf("RoleOverride ошибка: %v", err)
	}
	if role == nil || *role != "admin" {
		t.Errorf("role = %v, хотели admin", role)
	}
}

// TestDeleteOverride_NotFound проверяет ErrNotFound сервисного слоя.
func TestDeleteOverride_NotFound(t *testing.T) {
	svc := NewUserService(&mockRoleOverrideRepo{
		deleteFn: func(_ context.Context, _ string) error {
			return repository.ErrNotFound
		},
	}, slog.Default())

	if err := svc.DeleteOverride(context.Background(), "kc-unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteOverride ошибка = %v, хотели ErrNotFound", err)
	}
}
