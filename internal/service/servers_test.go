package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

func newServerService(serverRepo *mockServerRepo, componentRepo *mockComponentRepo) *ServerService {
	return NewServerService(serverRepo, componentRepo, &mockHistoryRepo{}, nil, slog.Default())
}

// TestServerGet_NotFound проверяет перевод ErrNotFound репозитория
// в сервисную ошибку.
func TestServerGet_NotFound(t *testing.T) {
	svc := newServerService(&mockServerRepo{}, &mockComponentRepo{})

	_, err := svc.Get(context.Background(), "no-such")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get ошибка = %v, хотели ErrNotFound", err)
	}
}

// TestServerUpdate_Archived проверяет запрет изменений архивного сервера.
func TestServerUpdate_Archived(t *testing.T) {
	svc := newServerService(activeServer("srv-1", model.ServerStatusArchived), &mockComponentRepo{})

	_, err := svc.Update(context.Background(), "srv-1", UpdateServerInput{Hostname: strPtr("new-host")})
	if !errors.Is(err, ErrServerArchived) {
		t.Errorf("Update ошибка = %v, хотели ErrServerArchived", err)
	}
}

// TestChangeStatus_Validation проверяет ручные переходы статуса:
// разрешены только NEW ↔ IN_WORK, остальные идут через верификацию
// и архивацию.
func TestChangeStatus_Validation(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"NEW → ASSEMBLED вручную", model.ServerStatusNew, model.ServerStatusAssembled},
		{"IN_WORK → VERIFIED вручную", model.ServerStatusInWork, model.ServerStatusVerified},
		{"NEW → ARCHIVED вручную", model.ServerStatusNew, model.ServerStatusArchived},
		{"ASSEMBLED → IN_WORK вручную", model.ServerStatusAssembled, model.ServerStatusInWork},
		{"неизвестный статус", model.ServerStatusNew, "BROKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newServerService(activeServer("srv-1", tt.from), &mockComponentRepo{})

			_, err := svc.ChangeStatus(context.Background(), "srv-1", tt.to, "user-1")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ChangeStatus ошибка = %v, хотели ErrValidation", err)
			}
		})
	}
}

// TestNormalizeSerial проверяет каноникализацию серийных номеров.
func TestNormalizeSerial(t *testing.T) {
	if got := normalizeSerial(nil); got != nil {
		t.Errorf("normalizeSerial(nil) = %v, хотели nil", *got)
	}
	if got := normalizeSerial(strPtr("   ")); got != nil {
		t.Errorf("normalizeSerial(пробелы) = %v, хотели nil", *got)
	}
	if got := normalizeSerial(strPtr("  SN-1 ")); got == nil || *got != "SN-1" {
		t.Errorf("normalizeSerial = %v, хотели SN-1", got)
	}
}
