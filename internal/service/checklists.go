// checklists.go — сервис чеклистов сборки и верификации: выдача
// чеклиста сервера по стадиям, отметка пунктов, расчёт готовности
// стадии. Шаблоны пунктов меняются редко и кэшируются в LRU с TTL
// (hashicorp/golang-lru/v2/expirable).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// Prometheus-метрики кэша шаблонов.
var (
	checklistCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bt_checklist_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш шаблонов чеклистов.",
	})
	checklistCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bt_checklist_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша шаблонов чеклистов.",
	})
)

// ChecklistService — сервис чеклистов.
type ChecklistService struct {
	checklistRepo repository.ChecklistRepository
	serverRepo    repository.ServerRepository
	txRunner      *repository.TxRunner
	templateCache *expirable.LRU[string, []*model.ChecklistTemplate]
	logger        *slog.Logger
}

// NewChecklistService создаёт сервис чеклистов. cacheSize и cacheTTL
// задают параметры LRU-кэша шаблонов (ключ — код стадии).
func NewChecklistService(
	checklistRepo repository.ChecklistRepository,
	serverRepo repository.ServerRepository,
	txRunner *repository.TxRunner,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *ChecklistService {
	return &ChecklistService{
		checklistRepo: checklistRepo,
		serverRepo:    serverRepo,
		txRunner:      txRunner,
		templateCache: expirable.NewLRU[string, []*model.ChecklistTemplate](cacheSize, nil, cacheTTL),
		logger:        logger.With(slog.String("component", "checklist_service")),
	}
}

// Templates возвращает действующие шаблоны стадии, сперва из кэша.
func (s *ChecklistService) Templates(ctx context.Context, stageCode string) ([]*model.ChecklistTemplate, error) {
	if !model.IsValidStage(stageCode) {
		return nil, fmt.Errorf("%w: недопустимая стадия %q", ErrValidation, stageCode)
	}

	if cached, ok := s.templateCache.Get(stageCode); ok {
		checklistCacheHitsTotal.Inc()
		return cached, nil
	}
	checklistCacheMissesTotal.Inc()

	templates, err := s.checklistRepo.Templates(ctx, stageCode)
	if err != nil {
		return nil, fmt.Errorf("получение шаблонов чеклиста: %w", err)
	}
	s.templateCache.Add(stageCode, templates)
	return templates, nil
}

// ServerChecklist возвращает состояние чеклиста сервера по стадии:
// все пункты шаблона, включая ещё не отмеченные.
func (s *ChecklistService) ServerChecklist(ctx context.Context, serverID, stageCode string) ([]*model.ServerChecklist, error) {
	if !model.IsValidStage(stageCode) {
		return nil, fmt.Errorf("%w: недопустимая стадия %q", ErrValidation, stageCode)
	}
	if _, err := s.serverRepo.GetByID(ctx, serverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сервера: %w", err)
	}

	items, err := s.checklistRepo.ServerItems(ctx, serverID, stageCode)
	if err != nil {
		return nil, fmt.Errorf("получение чеклиста сервера: %w", err)
	}
	return items, nil
}

// SetItem отмечает или снимает отметку пункта чеклиста для сервера.
// Отметка и событие истории пишутся в одной транзакции.
func (s *ChecklistService) SetItem(ctx context.Context, serverID, templateID string, completed bool, notes *string, actor string) (*model.ServerChecklist, error) {
	srv, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сервера: %w", err)
	}
	if srv.Status == model.ServerStatusArchived {
		return nil, ErrServerArchived
	}

	template, err := s.checklistRepo.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пункт чеклиста не найден", ErrValidation)
		}
		return nil, fmt.Errorf("получение шаблона: %w", err)
	}
	if !template.IsActive {
		return nil, fmt.Errorf("%w: пункт чеклиста неактивен", ErrValidation)
	}

	item := &model.ServerChecklist{
		ID:         uuid.New().String(),
		ServerID:   serverID,
		TemplateID: templateID,
		Completed:  completed,
		Notes:      notes,
	}
	if completed {
		now := time.Now().UTC()
		item.CompletedBy = &actor
		item.CompletedAt = &now
	}

	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := repository.NewChecklistRepository(tx).UpsertItem(ctx, item); err != nil {
			return err
		}
		return writeHistory(ctx, tx, serverID, actor, model.ActionChecklistDone,
			model.ChecklistCompletedPayload{
				TemplateID: templateID,
				Title:      template.Title,
				Completed:  completed,
			})
	})
	if err != nil {
		return nil, err
	}

	item.Template = template
	s.logger.Info("Пункт чеклиста отмечен",
		slog.String("server_id", serverID),
		slog.String("template_id", templateID),
		slog.Bool("completed", completed),
		slog.String("actor", actor),
	)
	return item, nil
}

// StageReadiness — готовность чеклиста стадии к подаче на верификацию.
type StageReadiness struct {
	// Total — всего обязательных пунктов
	Total int
	// Completed — выполнено обязательных пунктов
	Completed int
	// Remaining — заголовки невыполненных обязательных пунктов
	Remaining []string
	// Items — полный снимок чеклиста стадии
	Items []model.ChecklistSnapshotItem
}

// Ready — все обязательные пункты выполнены.
func (r *StageReadiness) Ready() bool {
	return r.Completed == r.Total
}

// StageReadiness считает готовность стадии: сколько обязательных
// пунктов выполнено и какие остались. Снимок Items кладётся в заявку
// на верификацию при подаче.
func (s *ChecklistService) StageReadiness(ctx context.Context, serverID, stageCode string) (*StageReadiness, error) {
	items, err := s.checklistRepo.ServerItems(ctx, serverID, stageCode)
	if err != nil {
		return nil, fmt.Errorf("получение чеклиста сервера: %w", err)
	}

	r := &StageReadiness{}
	for _, item := range items {
		t := item.Template
		r.Items = append(r.Items, model.ChecklistSnapshotItem{
			TemplateID:  t.ID,
			Title:       t.Title,
			GroupCode:   t.GroupCode,
			Required:    t.IsRequired,
			Completed:   item.Completed,
			CompletedBy: item.CompletedBy,
			CompletedAt: item.CompletedAt,
			Notes:       item.Notes,
		})
		if !t.IsRequired {
			continue
		}
		r.Total++
		if item.Completed {
			r.Completed++
		} else {
			r.Remaining = append(r.Remaining, t.Title)
		}
	}
	return r, nil
}
