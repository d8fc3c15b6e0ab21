// history.go — выдача журнала аудита сервера: полная лента событий и
// срез по конкретному комплектующему. Журнал пополняют мутирующие
// сервисы; здесь он только читается.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// HistoryService — сервис чтения журнала аудита.
type HistoryService struct {
	historyRepo repository.HistoryRepository
	serverRepo  repository.ServerRepository
	logger      *slog.Logger
}

// NewHistoryService создаёт сервис журнала аудита.
func NewHistoryService(
	historyRepo repository.HistoryRepository,
	serverRepo repository.ServerRepository,
	logger *slog.Logger,
) *HistoryService {
	return &HistoryService{
		historyRepo: historyRepo,
		serverRepo:  serverRepo,
		logger:      logger.With(slog.String("component", "history_service")),
	}
}

// ListByServer возвращает события сервера, новые первыми, с общим
// числом для пагинации. actions сужает выборку по видам событий.
func (s *HistoryService) ListByServer(ctx context.Context, serverID string, actions []string, limit, offset int) ([]*model.HistoryEvent, int, error) {
	for _, a := range actions {
		if !model.IsValidHistoryAction(a) {
			return nil, 0, fmt.Errorf("%w: недопустимый вид события %q", ErrValidation, a)
		}
	}
	if err := s.requireServer(ctx, serverID); err != nil {
		return nil, 0, err
	}

	filter := repository.HistoryFilter{Actions: actions}
	return s.list(ctx, serverID, filter, limit, offset)
}

// ComponentHistory возвращает события сервера, касающиеся конкретного
// комплектующего. Работает и для удалённых комплектующих: события
// ссылаются на них значением id в payload, а не внешним ключом.
func (s *HistoryService) ComponentHistory(ctx context.Context, serverID, componentID string, limit, offset int) ([]*model.HistoryEvent, int, error) {
	if err := s.requireServer(ctx, serverID); err != nil {
		return nil, 0, err
	}

	filter := repository.HistoryFilter{
		Actions:     model.ComponentActions,
		ComponentID: &componentID,
	}
	return s.list(ctx, serverID, filter, limit, offset)
}

func (s *HistoryService) list(ctx context.Context, serverID string, filter repository.HistoryFilter, limit, offset int) ([]*model.HistoryEvent, int, error) {
	events, err := s.historyRepo.ListByServer(ctx, serverID, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение истории: %w", err)
	}
	total, err := s.historyRepo.CountByServer(ctx, serverID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт истории: %w", err)
	}
	return events, total, nil
}

func (s *HistoryService) requireServer(ctx context.Context, serverID string) error {
	if _, err := s.serverRepo.GetByID(ctx, serverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение сервера: %w", err)
	}
	return nil
}
