package service

// Моки репозиториев для unit-тестов сервисов. Поведение задаётся
// функциональными полями; незаданный метод возвращает пустой
// результат либо ErrNotFound для точечных выборок.

import (
	"context"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// --- mockServerRepo ---

type mockServerRepo struct {
	createFn       func(ctx context.Context, s *model.Server) error
	getByIDFn      func(ctx context.Context, id string) (*model.Server, error)
	listFn         func(ctx context.Context, filter repository.ServerFilter, limit, offset int) ([]*model.Server, error)
	countFn        func(ctx context.Context, filter repository.ServerFilter) (int, error)
	updateFn       func(ctx context.Context, s *model.Server) error
	updateStatusFn func(ctx context.Context, id, status string) error
}

func (m *mockServerRepo) Create(ctx context.Context, s *model.Server) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockServerRepo) GetByID(ctx context.Context, id string) (*model.Server, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockServerRepo) List(ctx context.Context, filter repository.ServerFilter, limit, offset int) ([]*model.Server, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, limit, offset)
	}
	return nil, nil
}

func (m *mockServerRepo) Count(ctx context.Context, filter repository.ServerFilter) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, filter)
	}
	return 0, nil
}

func (m *mockServerRepo) Update(ctx context.Context, s *model.Server) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, s)
	}
	return nil
}

func (m *mockServerRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

// --- mockComponentRepo ---

type mockComponentRepo struct {
	createFn          func(ctx context.Context, c *model.Component) error
	getByIDFn         func(ctx context.Context, id string) (*model.Component, error)
	getForUpdateFn    func(ctx context.Context, id string) (*model.Component, error)
	listByServerFn    func(ctx context.Context, serverID string, componentType *string) ([]*model.Component, error)
	countByServerFn   func(ctx context.Context, serverID string) (int, error)
	updateFn          func(ctx context.Context, c *model.Component) error
	updateSerialsFn   func(ctx context.Context, c *model.Component) error
	markReplacedFn    func(ctx context.Context, c *model.Component) error
	deleteFn          func(ctx context.Context, id string) error
	searchFn          func(ctx context.Context, filter repository.ComponentSearchFilter, limit, offset int) ([]*model.ComponentWithServer, error)
	findConflictFn    func(ctx context.Context, serials []string, excludeID *string) (*model.ComponentWithServer, error)
	claimSerialsFn    func(ctx context.Context, componentID string, serials []string) error
	releaseSerialsFn  func(ctx context.Context, componentID string) error
}

func (m *mockComponentRepo) Create(ctx context.Context, c *model.Component) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

func (m *mockComponentRepo) GetByID(ctx context.Context, id string) (*model.Component, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockComponentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Component, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockComponentRepo) ListByServer(ctx context.Context, serverID string, componentType *string) ([]*model.Component, error) {
	if m.listByServerFn != nil {
		return m.listByServerFn(ctx, serverID, componentType)
	}
	return nil, nil
}

func (m *mockComponentRepo) CountByServer(ctx context.Context, serverID string) (int, error) {
	if m.countByServerFn != nil {
		return m.countByServerFn(ctx, serverID)
	}
	return 0, nil
}

func (m *mockComponentRepo) Update(ctx context.Context, c *model.Component) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, c)
	}
	return nil
}

func (m *mockComponentRepo) UpdateSerials(ctx context.Context, c *model.Component) error {
	if m.updateSerialsFn != nil {
		return m.updateSerialsFn(ctx, c)
	}
	return nil
}

func (m *mockComponentRepo) MarkReplaced(ctx context.Context, c *model.Component) error {
	if m.markReplacedFn != nil {
		return m.markReplacedFn(ctx, c)
	}
	return nil
}

func (m *mockComponentRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockComponentRepo) Search(ctx context.Context, filter repository.ComponentSearchFilter, limit, offset int) ([]*model.ComponentWithServer, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, filter, limit, offset)
	}
	return nil, nil
}

func (m *mockComponentRepo) FindActiveSerialConflict(ctx context.Context, serials []string, excludeID *string) (*model.ComponentWithServer, error) {
	if m.findConflictFn != nil {
		return m.findConflictFn(ctx, serials, excludeID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockComponentRepo) ClaimSerials(ctx context.Context, componentID string, serials []string) error {
	if m.claimSerialsFn != nil {
		return m.claimSerialsFn(ctx, componentID, serials)
	}
	return nil
}

func (m *mockComponentRepo) ReleaseSerials(ctx context.Context, componentID string) error {
	if m.releaseSerialsFn != nil {
		return m.releaseSerialsFn(ctx, componentID)
	}
	return nil
}

// --- mockApprovalRepo ---

type mockApprovalRepo struct {
	createFn       func(ctx context.Context, a *model.Approval) error
	getByIDFn      func(ctx context.Context, id string) (*model.Approval, error)
	getLatestFn    func(ctx context.Context, serverID, stageCode string) (*model.Approval, error)
	getPendingFn   func(ctx context.Context, serverID, stageCode string) (*model.Approval, error)
	hasPendingFn   func(ctx context.Context, serverID string) (bool, error)
	listByServerFn func(ctx context.Context, serverID string) ([]*model.Approval, error)
	queueFn        func(ctx context.Context, stageCode *string, limit, offset int) ([]*model.ApprovalWithServer, error)
	countQueueFn   func(ctx context.Context, stageCode *string) (int, error)
	resolveFn      func(ctx context.Context, a *model.Approval) error
	statsFn        func(ctx context.Context) (*model.ApprovalStats, error)
}

func (m *mockApprovalRepo) Create(ctx context.Context, a *model.Approval) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id string) (*model.Approval, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockApprovalRepo) GetLatest(ctx context.Context, serverID, stageCode string) (*model.Approval, error) {
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx, serverID, stageCode)
	}
	return nil, repository.ErrNotFound
}

func (m *mockApprovalRepo) GetPending(ctx context.Context, serverID, stageCode string) (*model.Approval, error) {
	if m.getPendingFn != nil {
		return m.getPendingFn(ctx, serverID, stageCode)
	}
	return nil, repository.ErrNotFound
}

func (m *mockApprovalRepo) HasPending(ctx context.Context, serverID string) (bool, error) {
	if m.hasPendingFn != nil {
		return m.hasPendingFn(ctx, serverID)
	}
	return false, nil
}

func (m *mockApprovalRepo) ListByServer(ctx context.Context, serverID string) ([]*model.Approval, error) {
	if m.listByServerFn != nil {
		return m.listByServerFn(ctx, serverID)
	}
	return nil, nil
}

func (m *mockApprovalRepo) Queue(ctx context.Context, stageCode *string, limit, offset int) ([]*model.ApprovalWithServer, error) {
	if m.queueFn != nil {
		return m.queueFn(ctx, stageCode, limit, offset)
	}
	return nil, nil
}

func (m *mockApprovalRepo) CountQueue(ctx context.Context, stageCode *string) (int, error) {
	if m.countQueueFn != nil {
		return m.countQueueFn(ctx, stageCode)
	}
	return 0, nil
}

func (m *mockApprovalRepo) Resolve(ctx context.Context, a *model.Approval) error {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, a)
	}
	return nil
}

func (m *mockApprovalRepo) Stats(ctx context.Context) (*model.ApprovalStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.ApprovalStats{}, nil
}

// --- mockChecklistRepo ---

type mockChecklistRepo struct {
	templatesFn   func(ctx context.Context, stageCode string) ([]*model.ChecklistTemplate, error)
	getTemplateFn func(ctx context.Context, id string) (*model.ChecklistTemplate, error)
	serverItemsFn func(ctx context.Context, serverID, stageCode string) ([]*model.ServerChecklist, error)
	upsertItemFn  func(ctx context.Context, item *model.ServerChecklist) error
}

func (m *mockChecklistRepo) Templates(ctx context.Context, stageCode string) ([]*model.ChecklistTemplate, error) {
	if m.templatesFn != nil {
		return m.templatesFn(ctx, stageCode)
	}
	return nil, nil
}

func (m *mockChecklistRepo) GetTemplate(ctx context.Context, id string) (*model.ChecklistTemplate, error) {
	if m.getTemplateFn != nil {
		return m.getTemplateFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockChecklistRepo) ServerItems(ctx context.Context, serverID, stageCode string) ([]*model.ServerChecklist, error) {
	if m.serverItemsFn != nil {
		return m.serverItemsFn(ctx, serverID, stageCode)
	}
	return nil, nil
}

func (m *mockChecklistRepo) UpsertItem(ctx context.Context, item *model.ServerChecklist) error {
	if m.upsertItemFn != nil {
		return m.upsertItemFn(ctx, item)
	}
	return nil
}

// --- mockHistoryRepo ---

type mockHistoryRepo struct {
	createFn       func(ctx context.Context, e *model.HistoryEvent) error
	listByServerFn func(ctx context.Context, serverID string, filter repository.HistoryFilter, limit, offset int) ([]*model.HistoryEvent, error)
	countFn        func(ctx context.Context, serverID string, filter repository.HistoryFilter) (int, error)
}

func (m *mockHistoryRepo) Create(ctx context.Context, e *model.HistoryEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, e)
	}
	return nil
}

func (m *mockHistoryRepo) ListByServer(ctx context.Context, serverID string, filter repository.HistoryFilter, limit, offset int) ([]*model.HistoryEvent, error) {
	if m.listByServerFn != nil {
		return m.listByServerFn(ctx, serverID, filter, limit, offset)
	}
	return nil, nil
}

func (m *mockHistoryRepo) CountByServer(ctx context.Context, serverID string, filter repository.HistoryFilter) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, serverID, filter)
	}
	return 0, nil
}

// --- mockRoleOverrideRepo ---

type mockRoleOverrideRepo struct {
	upsertFn  func(ctx context.Context, ro *model.RoleOverride) error
	getFn     func(ctx context.Context, keycloakUserID string) (*model.RoleOverride, error)
	deleteFn  func(ctx context.Context, keycloakUserID string) error
	listFn    func(ctx context.Context, limit, offset int) ([]*model.RoleOverride, error)
	countFn   func(ctx context.Context) (int, error)
}

func (m *mockRoleOverrideRepo) Upsert(ctx context.Context, ro *model.RoleOverride) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, ro)
	}
	return nil
}

func (m *mockRoleOverrideRepo) GetByKeycloakUserID(ctx context.Context, keycloakUserID string) (*model.RoleOverride, error) {
	if m.getFn != nil {
		return m.getFn(ctx, keycloakUserID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRoleOverrideRepo) Delete(ctx context.Context, keycloakUserID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, keycloakUserID)
	}
	return nil
}

func (m *mockRoleOverrideRepo) List(ctx context.Context, limit, offset int) ([]*model.RoleOverride, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockRoleOverrideRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

// --- Общие помощники тестов ---

func strPtr(s string) *string { return &s }
