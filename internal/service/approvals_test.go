package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// checklistItems строит мок чеклиста: count обязательных пунктов,
// из них completed выполненных, плюс один необязательный невыполненный.
func checklistItems(count, completed int) []*model.ServerChecklist {
	var items []*model.ServerChecklist
	for i := 0; i < count; i++ {
		items = append(items, &model.ServerChecklist{
			Completed: i < completed,
			Template: &model.ChecklistTemplate{
				ID:         "tpl-" + string(rune('a'+i)),
				Title:      "Обязательный пункт",
				GroupCode:  model.ChecklistGroupAssembly,
				IsRequired: true,
				IsActive:   true,
			},
		})
	}
	items = append(items, &model.ServerChecklist{
		Completed: false,
		Template: &model.ChecklistTemplate{
			ID:        "tpl-opt",
			Title:     "Необязательный пункт",
			GroupCode: model.ChecklistGroupFinal,
			IsActive:  true,
		},
	})
	return items
}

func newApprovalService(approvalRepo *mockApprovalRepo, serverRepo *mockServerRepo, checklistRepo *mockChecklistRepo) *ApprovalService {
	checklists := NewChecklistService(checklistRepo, serverRepo, nil, 16, time.Minute, slog.Default())
	return NewApprovalService(approvalRepo, serverRepo, checklists, nil, slog.Default())
}

// TestSubmit_InvalidStage проверяет отказ по неизвестной стадии.
func TestSubmit_InvalidStage(t *testing.T) {
	svc := newApprovalService(&mockApprovalRepo{}, &mockServerRepo{}, &mockChecklistRepo{})

	_, err := svc.Submit(context.Background(), "srv-1", "PAINTING", "user-1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Submit ошибка = %v, хотели ErrValidation", err)
	}
}

// TestSubmit_ArchivedServer проверяет запрет подачи по архивному серверу.
func TestSubmit_ArchivedServer(t *testing.T) {
	svc := newApprovalService(&mockApprovalRepo{}, activeServer("srv-1", model.ServerStatusArchived), &mockChecklistRepo{})

	_, err := svc.Submit(context.Background(), "srv-1", model.StageAssembly, "user-1")
	if !errors.Is(err, ErrServerArchived) {
		t.Errorf("Submit ошибка = %v, хотели ErrServerArchived", err)
	}
}

// TestSubmit_StageOrder проверяет, что VERIFICATION недоступна без
// одобренной ASSEMBLY.
func TestSubmit_StageOrder(t *testing.T) {
	tests := []struct {
		name     string
		latestFn func(ctx context.Context, serverID, stageCode string) (*model.Approval, error)
	}{
		{
			name: "сборка не подавалась",
			latestFn: func(_ context.Context, _, _ string) (*model.Approval, error) {
				return nil, repository.ErrNotFound
			},
		},
		{
			name: "сборка ещё на рассмотрении",
			latestFn: func(_ context.Context, _, _ string) (*model.Approval, error) {
				return &model.Approval{Status: model.ApprovalStatusPending}, nil
			},
		},
		{
			name: "сборка отклонена",
			latestFn: func(_ context.Context, _, _ string) (*model.Approval, error) {
				return &model.Approval{Status: model.ApprovalStatusRejected}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approvalRepo := &mockApprovalRepo{getLatestFn: tt.latestFn}
			svc := newApprovalService(approvalRepo, activeServer("srv-1", model.ServerStatusAssembled), &mockChecklistRepo{})

			_, err := svc.Submit(context.Background(), "srv-1", model.StageVerification, "user-1")
			if !errors.Is(err, ErrStageOrder) {
				t.Errorf("Submit ошибка = %v, хотели ErrStageOrder", err)
			}
		})
	}
}

// TestSubmit_ChecklistIncomplete проверяет гейт по обязательным пунктам.
func TestSubmit_ChecklistIncomplete(t *testing.T) {
	checklistRepo := &mockChecklistRepo{
		serverItemsFn: func(_ context.Context, _, _ string) ([]*model.ServerChecklist, error) {
			return checklistItems(3, 2), nil
		},
	}
	svc := newApprovalService(&mockApprovalRepo{}, activeServer("srv-1", model.ServerStatusInWork), checklistRepo)

	_, err := svc.Submit(context.Background(), "srv-1", model.StageAssembly, "user-1")
	if !errors.Is(err, ErrChecklistIncomplete) {
		t.Errorf("Submit ошибка = %v, хотели ErrChecklistIncomplete", err)
	}
}

// TestReject_RequiresComment проверяет обязательность комментария
// при отклонении.
func TestReject_RequiresComment(t *testing.T) {
	svc := newApprovalService(&mockApprovalRepo{}, &mockServerRepo{}, &mockChecklistRepo{})

	if _, err := svc.Reject(context.Background(), "appr-1", "otk-1", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Reject(nil) ошибка = %v, хотели ErrValidation", err)
	}
	if _, err := svc.Reject(context.Background(), "appr-1", "otk-1", strPtr("   ")); !errors.Is(err, ErrValidation) {
		t.Errorf("Reject(пробелы) ошибка = %v, хотели ErrValidation", err)
	}
}

// TestQueue_InvalidStage проверяет валидацию фильтра очереди.
func TestQueue_InvalidStage(t *testing.T) {
	svc := newApprovalService(&mockApprovalRepo{}, &mockServerRepo{}, &mockChecklistRepo{})

	_, _, err := svc.Queue(context.Background(), strPtr("PAINTING"), 50, 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Queue ошибка = %v, хотели ErrValidation", err)
	}
}

// TestStageCompletion проверяет сводку готовности по стадиям:
// выполненный чеклист сборки и одобренная сборка открывают подачу
// верификации; невыполненный чеклист верификации её закрывает.
func TestStageCompletion(t *testing.T) {
	approvalRepo := &mockApprovalRepo{
		getLatestFn: func(_ context.Context, _, stageCode string) (*model.Approval, error) {
			if stageCode == model.StageAssembly {
				return &model.Approval{Status: model.ApprovalStatusApproved, StageCode: stageCode}, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	checklistRepo := &mockChecklistRepo{
		serverItemsFn: func(_ context.Context, _, stageCode string) ([]*model.ServerChecklist, error) {
			if stageCode == model.StageAssembly {
				return checklistItems(3, 3), nil
			}
			return checklistItems(2, 1), nil
		},
	}
	svc := newApprovalService(approvalRepo, activeServer("srv-1", model.ServerStatusAssembled), checklistRepo)

	stages, err := svc.StageCompletion(context.Background(), "srv-1")
	if err != nil {
		t.Fatalf("StageCompletion ошибка: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("стадий = %d, хотели 2", len(stages))
	}

	assembly := stages[0]
	if assembly.StageCode != model.StageAssembly {
		t.Errorf("стадия[0] = %s, хотели ASSEMBLY", assembly.StageCode)
	}
	if !assembly.Complete {
		t.Error("ASSEMBLY.Complete = false, хотели true")
	}
	if assembly.CanSubmit {
		t.Error("ASSEMBLY.CanSubmit = true, хотели false (уже одобрена)")
	}
	if assembly.ChecklistTotal != 3 || assembly.ChecklistCompleted != 3 {
		t.Errorf("чеклист ASSEMBLY = %d/%d, хотели 3/3",
			assembly.ChecklistCompleted, assembly.ChecklistTotal)
	}

	verification := stages[1]
	if verification.Complete {
		t.Error("VERIFICATION.Complete = true, хотели false")
	}
	if verification.CanSubmit {
		t.Error("VERIFICATION.CanSubmit = true, хотели false (чеклист не выполнен)")
	}
	if len(verification.Remaining) != 1 {
		t.Errorf("Remaining = %d, хотели 1", len(verification.Remaining))
	}
}

// TestStageCompletion_VerificationReady проверяет CanSubmit второй
// стадии при выполненных чеклистах и одобренной первой.
func TestStageCompletion_VerificationReady(t *testing.T) {
	approvalRepo := &mockApprovalRepo{
		getLatestFn: func(_ context.Context, _, stageCode string) (*model.Approval, error) {
			if stageCode == model.StageAssembly {
				return &model.Approval{Status: model.ApprovalStatusApproved}, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	checklistRepo := &mockChecklistRepo{
		serverItemsFn: func(_ context.Context, _, _ string) ([]*model.ServerChecklist, error) {
			return checklistItems(2, 2), nil
		},
	}
	svc := newApprovalService(approvalRepo, activeServer("srv-1", model.ServerStatusAssembled), checklistRepo)

	stages, err := svc.StageCompletion(context.Background(), "srv-1")
	if err != nil {
		t.Fatalf("StageCompletion ошибка: %v", err)
	}
	if !stages[1].CanSubmit {
		t.Error("VERIFICATION.CanSubmit = false, хотели true")
	}
}
