// Пакет service — бизнес-логика Beryll Tracking Module.
// servers.go — сервис учёта серверов: постановка на учёт, карточка,
// смена статуса, архивация. Каждая мутация пишет событие истории в той
// же транзакции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// ServerService — сервис учёта серверов.
type ServerService struct {
	serverRepo    repository.ServerRepository
	componentRepo repository.ComponentRepository
	historyRepo   repository.HistoryRepository
	txRunner      *repository.TxRunner
	logger        *slog.Logger
}

// NewServerService создаёт сервис серверов.
func NewServerService(
	serverRepo repository.ServerRepository,
	componentRepo repository.ComponentRepository,
	historyRepo repository.HistoryRepository,
	txRunner *repository.TxRunner,
	logger *slog.Logger,
) *ServerService {
	return &ServerService{
		serverRepo:    serverRepo,
		componentRepo: componentRepo,
		historyRepo:   historyRepo,
		txRunner:      txRunner,
		logger:        logger.With(slog.String("component", "server_service")),
	}
}

// CreateServerInput — данные постановки сервера на учёт.
type CreateServerInput struct {
	SerialNumber    *string
	APKSerialNumber *string
	Hostname        *string
	IPAddress       *string
	Notes           *string
}

// Create ставит сервер на учёт и пишет событие SERVER_CREATED
// в той же транзакции.
func (s *ServerService) Create(ctx context.Context, in CreateServerInput, actor string) (*model.Server, error) {
	srv := &model.Server{
		ID:              uuid.New().String(),
		SerialNumber:    normalizeSerial(in.SerialNumber),
		APKSerialNumber: normalizeSerial(in.APKSerialNumber),
		Hostname:        in.Hostname,
		IPAddress:       in.IPAddress,
		Notes:           in.Notes,
		Status:          model.ServerStatusNew,
	}

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := repository.NewServerRepository(tx).Create(ctx, srv); err != nil {
			return err
		}
		return writeHistory(ctx, tx, srv.ID, actor, model.ActionServerCreated,
			model.ServerCreatedPayload{
				SerialNumber:    srv.SerialNumber,
				APKSerialNumber: srv.APKSerialNumber,
				Hostname:        srv.Hostname,
			})
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: серийный номер сервера уже зарегистрирован", ErrConflict)
		}
		return nil, fmt.Errorf("постановка сервера на учёт: %w", err)
	}

	s.logger.Info("Сервер поставлен на учёт",
		slog.String("server_id", srv.ID),
		slog.String("actor", actor),
	)
	return srv, nil
}

// Get возвращает сервер по ID.
func (s *ServerService) Get(ctx context.Context, id string) (*model.Server, error) {
	srv, err := s.serverRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сервера: %w", err)
	}
	return srv, nil
}

// ServerDetail — карточка сервера вместе с комплектующими.
type ServerDetail struct {
	Server     *model.Server
	Components []*model.Component
}

// GetDetail возвращает карточку сервера с комплектующими.
func (s *ServerService) GetDetail(ctx context.Context, id string) (*ServerDetail, error) {
	srv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	components, err := s.componentRepo.ListByServer(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("получение комплектующих сервера: %w", err)
	}

	return &ServerDetail{Server: srv, Components: components}, nil
}

// List возвращает список серверов с фильтрацией и пагинацией.
func (s *ServerService) List(ctx context.Context, filter repository.ServerFilter, limit, offset int) ([]*model.Server, int, error) {
	servers, err := s.serverRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка серверов: %w", err)
	}

	total, err := s.serverRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт серверов: %w", err)
	}

	return servers, total, nil
}

// UpdateServerInput — изменяемые атрибуты сервера. nil — поле не трогаем.
type UpdateServerInput struct {
	SerialNumber    *string
	APKSerialNumber *string
	Hostname        *string
	IPAddress       *string
	Notes           *string
}

// Update обновляет атрибуты сервера. Архивированный сервер неизменяем.
func (s *ServerService) Update(ctx context.Context, id string, in UpdateServerInput) (*model.Server, error) {
	srv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if srv.Status == model.ServerStatusArchived {
		return nil, ErrServerArchived
	}

	if in.SerialNumber != nil {
		srv.SerialNumber = normalizeSerial(in.SerialNumber)
	}
	if in.APKSerialNumber != nil {
		srv.APKSerialNumber = normalizeSerial(in.APKSerialNumber)
	}
	if in.Hostname != nil {
		srv.Hostname = in.Hostname
	}
	if in.IPAddress != nil {
		srv.IPAddress = in.IPAddress
	}
	if in.Notes != nil {
		srv.Notes = in.Notes
	}

	if err := s.serverRepo.Update(ctx, srv); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: серийный номер сервера уже зарегистрирован", ErrConflict)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление сервера: %w", err)
	}

	s.logger.Info("Сервер обновлён", slog.String("server_id", id))
	return srv, nil
}

// manualTransitions — смены статуса, доступные оператору напрямую.
// ASSEMBLED и VERIFIED выставляются только через одобрение заявок,
// ARCHIVED — только через Archive.
var manualTransitions = map[string][]string{
	model.ServerStatusNew:    {model.ServerStatusInWork},
	model.ServerStatusInWork: {model.ServerStatusNew},
}

// ChangeStatus выполняет ручную смену статуса сервера.
func (s *ServerService) ChangeStatus(ctx context.Context, id, newStatus, actor string) (*model.Server, error) {
	if !model.IsValidServerStatus(newStatus) {
		return nil, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, newStatus)
	}

	srv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, st := range manualTransitions[srv.Status] {
		if st == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: переход %s → %s недоступен вручную",
			ErrValidation, srv.Status, newStatus)
	}

	oldStatus := srv.Status
	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := repository.NewServerRepository(tx).UpdateStatus(ctx, id, newStatus); err != nil {
			return err
		}
		return writeHistory(ctx, tx, id, actor, model.ActionStatusChanged,
			model.StatusChangedPayload{FromStatus: oldStatus, ToStatus: newStatus})
	})
	if err != nil {
		return nil, fmt.Errorf("смена статуса сервера: %w", err)
	}

	srv.Status = newStatus
	s.logger.Info("Статус сервера изменён",
		slog.String("server_id", id),
		slog.String("from", oldStatus),
		slog.String("to", newStatus),
		slog.String("actor", actor),
	)
	return srv, nil
}

// Archive выводит сервер из учёта. Комплектующие остаются в БД,
// но сервер исключается из рабочих выборок по статусу.
func (s *ServerService) Archive(ctx context.Context, id, actor string, comment *string) (*model.Server, error) {
	srv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if srv.Status == model.ServerStatusArchived {
		return nil, fmt.Errorf("%w: сервер уже архивирован", ErrConflict)
	}

	oldStatus := srv.Status
	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		pending, err := repository.NewApprovalRepository(tx).HasPending(ctx, id)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: по серверу есть нерассмотренная заявка на верификацию", ErrConflict)
		}
		if err := repository.NewServerRepository(tx).UpdateStatus(ctx, id, model.ServerStatusArchived); err != nil {
			return err
		}
		return writeHistory(ctx, tx, id, actor, model.ActionServerArchived,
			model.StatusChangedPayload{
				FromStatus: oldStatus,
				ToStatus:   model.ServerStatusArchived,
				Comment:    comment,
			})
	})
	if err != nil {
		return nil, fmt.Errorf("архивация сервера: %w", err)
	}

	srv.Status = model.ServerStatusArchived
	s.logger.Info("Сервер архивирован",
		slog.String("server_id", id),
		slog.String("actor", actor),
	)
	return srv, nil
}

// writeHistory формирует и пишет событие истории внутри транзакции.
func writeHistory(ctx context.Context, tx pgx.Tx, serverID, actor, action string, payload any) error {
	event, err := model.NewHistoryEvent(serverID, actor, action, payload)
	if err != nil {
		return err
	}
	event.ID = uuid.New().String()
	return repository.NewHistoryRepository(tx).Create(ctx, event)
}

// normalizeSerial приводит серийный номер к каноническому виду:
// обрезает пробелы; пустая строка эквивалентна отсутствию значения.
func normalizeSerial(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
