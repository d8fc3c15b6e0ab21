// approvals.go — сервис двухступенчатой верификации серверов:
// подача заявки со снимком чеклиста, одобрение и отклонение
// инспектором ОТК, очередь FIFO, сводка для панели инспектора.
// Стадии проходят строго по порядку: VERIFICATION подаётся только
// после одобренной ASSEMBLY.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// ApprovalService — сервис верификации серверов.
type ApprovalService struct {
	approvalRepo repository.ApprovalRepository
	serverRepo   repository.ServerRepository
	checklists   *ChecklistService
	txRunner     *repository.TxRunner
	logger       *slog.Logger
}

// NewApprovalService создаёт сервис верификации.
func NewApprovalService(
	approvalRepo repository.ApprovalRepository,
	serverRepo repository.ServerRepository,
	checklists *ChecklistService,
	txRunner *repository.TxRunner,
	logger *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		approvalRepo: approvalRepo,
		serverRepo:   serverRepo,
		checklists:   checklists,
		txRunner:     txRunner,
		logger:       logger.With(slog.String("component", "approval_service")),
	}
}

// Submit подаёт сервер на верификацию стадии. Перед подачей
// проверяется порядок стадий и полнота обязательных пунктов чеклиста;
// состояние чеклиста замораживается снимком в заявке. Повторная
// подача при уже открытой заявке той же стадии отклоняется.
func (s *ApprovalService) Submit(ctx context.Context, serverID, stageCode, actor string) (*model.Approval, error) {
	if !model.IsValidStage(stageCode) {
		return nil, fmt.Errorf("%w: недопустимая стадия %q", ErrValidation, stageCode)
	}

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

	// Порядок стадий: вторая подаётся только после одобренной первой.
	if prev := model.PreviousStage(stageCode); prev != "" {
		latest, err := s.approvalRepo.GetLatest(ctx, serverID, prev)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: стадия %s ещё не одобрена", ErrStageOrder, prev)
			}
			return nil, fmt.Errorf("проверка порядка стадий: %w", err)
		}
		if latest.Status != model.ApprovalStatusApproved {
			return nil, fmt.Errorf("%w: стадия %s ещё не одобрена", ErrStageOrder, prev)
		}
	}

	readiness, err := s.checklists.StageReadiness(ctx, serverID, stageCode)
	if err != nil {
		return nil, err
	}
	if !readiness.Ready() {
		return nil, fmt.Errorf("%w: не выполнено пунктов: %d (%s)",
			ErrChecklistIncomplete, len(readiness.Remaining),
			strings.Join(readiness.Remaining, "; "))
	}

	snapshot, err := json.Marshal(readiness.Items)
	if err != nil {
		return nil, fmt.Errorf("снимок чеклиста: %w", err)
	}

	a := &model.Approval{
		ID:                uuid.New().String(),
		ServerID:          serverID,
		StageCode:         stageCode,
		Status:            model.ApprovalStatusPending,
		SubmittedBy:       actor,
		SubmittedAt:       time.Now().UTC(),
		ChecklistSnapshot: snapshot,
	}

	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := repository.NewApprovalRepository(tx).Create(ctx, a); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: по стадии %s уже есть открытая заявка", ErrConflict, stageCode)
			}
			return err
		}
		return writeHistory(ctx, tx, serverID, actor, model.ActionApprovalSubmitted,
			model.ApprovalPayload{ApprovalID: a.ID, StageCode: stageCode})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Заявка на верификацию подана",
		slog.String("approval_id", a.ID),
		slog.String("server_id", serverID),
		slog.String("stage", stageCode),
		slog.String("actor", actor),
	)
	return a, nil
}

// Get возвращает заявку по ID.
func (s *ApprovalService) Get(ctx context.Context, id string) (*model.Approval, error) {
	a, err := s.approvalRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение заявки: %w", err)
	}
	return a, nil
}

// Approve одобряет заявку. Заявка переводится в APPROVED, сервер
// продвигается по жизненному циклу (ASSEMBLY → ASSEMBLED,
// VERIFICATION → VERIFIED) в той же транзакции. Повторное решение по
// уже рассмотренной заявке отклоняется.
func (s *ApprovalService) Approve(ctx context.Context, id, reviewer string, comment *string) (*model.Approval, error) {
	return s.resolve(ctx, id, reviewer, comment, true)
}

// Reject отклоняет заявку. Комментарий обязателен: сборщик должен
// знать, что исправлять. Статус сервера не меняется; повторная подача
// создаёт новую заявку.
func (s *ApprovalService) Reject(ctx context.Context, id, reviewer string, comment *string) (*model.Approval, error) {
	if comment == nil || strings.TrimSpace(*comment) == "" {
		return nil, fmt.Errorf("%w: при отклонении обязателен комментарий", ErrValidation)
	}
	return s.resolve(ctx, id, reviewer, comment, false)
}

// stageTargetStatus — статус сервера после одобрения стадии.
var stageTargetStatus = map[string]string{
	model.StageAssembly:     model.ServerStatusAssembled,
	model.StageVerification: model.ServerStatusVerified,
}

func (s *ApprovalService) resolve(ctx context.Context, id, reviewer string, comment *string, approve bool) (*model.Approval, error) {
	var resolved *model.Approval
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewApprovalRepository(tx)

		a, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		a.Status = model.ApprovalStatusApproved
		action := model.ActionApprovalApproved
		if !approve {
			a.Status = model.ApprovalStatusRejected
			action = model.ActionApprovalRejected
		}
		a.ReviewedBy = &reviewer
		a.ReviewedAt = &now
		a.Comment = comment

		if err := repo.Resolve(ctx, a); err != nil {
			return err
		}

		if approve {
			target := stageTargetStatus[a.StageCode]
			if err := repository.NewServerRepository(tx).UpdateStatus(ctx, a.ServerID, target); err != nil {
				return err
			}
		}

		resolved = a
		return writeHistory(ctx, tx, a.ServerID, reviewer, action,
			model.ApprovalPayload{ApprovalID: a.ID, StageCode: a.StageCode, Comment: comment})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: заявка уже рассмотрена", ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("Заявка рассмотрена",
		slog.String("approval_id", id),
		slog.String("status", resolved.Status),
		slog.String("reviewer", reviewer),
	)
	return resolved, nil
}

// Queue возвращает очередь открытых заявок, старые первыми, с общим
// числом для пагинации.
func (s *ApprovalService) Queue(ctx context.Context, stageCode *string, limit, offset int) ([]*model.ApprovalWithServer, int, error) {
	if stageCode != nil && !model.IsValidStage(*stageCode) {
		return nil, 0, fmt.Errorf("%w: недопустимая стадия %q", ErrValidation, *stageCode)
	}

	items, err := s.approvalRepo.Queue(ctx, stageCode, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение очереди: %w", err)
	}
	total, err := s.approvalRepo.CountQueue(ctx, stageCode)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт очереди: %w", err)
	}
	return items, total, nil
}

// ListByServer возвращает все заявки сервера, новые первыми.
func (s *ApprovalService) ListByServer(ctx context.Context, serverID string) ([]*model.Approval, error) {
	if _, err := s.serverRepo.GetByID(ctx, serverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сервера: %w", err)
	}

	approvals, err := s.approvalRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("получение заявок сервера: %w", err)
	}
	return approvals, nil
}

// StageCompletion собирает сводку готовности сервера по каждой стадии:
// состояние чеклиста, последняя заявка, возможность подачи.
func (s *ApprovalService) StageCompletion(ctx context.Context, serverID string) ([]*model.StageCompletion, error) {
	if _, err := s.serverRepo.GetByID(ctx, serverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сервера: %w", err)
	}

	var result []*model.StageCompletion
	prevApproved := true
	for _, stage := range model.Stages {
		readiness, err := s.checklists.StageReadiness(ctx, serverID, stage)
		if err != nil {
			return nil, err
		}

		sc := &model.StageCompletion{
			StageCode:          stage,
			ChecklistTotal:     readiness.Total,
			ChecklistCompleted: readiness.Completed,
			Remaining:          readiness.Remaining,
		}

		latest, err := s.approvalRepo.GetLatest(ctx, serverID, stage)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("получение заявки стадии: %w", err)
		}
		if err == nil {
			sc.LatestApproval = latest
			sc.Complete = latest.Status == model.ApprovalStatusApproved
		}

		hasPending := sc.LatestApproval != nil && sc.LatestApproval.Status == model.ApprovalStatusPending
		sc.CanSubmit = prevApproved && readiness.Ready() && !hasPending && !sc.Complete

		prevApproved = sc.Complete
		result = append(result, sc)
	}
	return result, nil
}

// Stats возвращает сводку по верификациям для панели инспектора.
func (s *ApprovalService) Stats(ctx context.Context) (*model.ApprovalStats, error) {
	stats, err := s.approvalRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение сводки верификаций: %w", err)
	}
	return stats, nil
}
