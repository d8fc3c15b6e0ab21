// approvals.go — обработчики верификаций: подача, решение, очередь
// инспектора, сводка стадий.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/yadro-qms/beryll-tracking/internal/api/errors"
	"github.com/yadro-qms/beryll-tracking/internal/api/middleware"
	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// approvalResponse — представление записи верификации в API.
type approvalResponse struct {
	ID                string          `json:"id"`
	ServerID          string          `json:"serverId"`
	StageCode         string          `json:"stageCode"`
	Status            string          `json:"status"`
	SubmittedBy       string          `json:"submittedBy"`
	SubmittedAt       time.Time       `json:"submittedAt"`
	ReviewedBy        *string         `json:"reviewedBy"`
	ReviewedAt        *time.Time      `json:"reviewedAt"`
	Comment           *string         `json:"comment"`
	ChecklistSnapshot json.RawMessage `json:"checklistSnapshot,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func mapApproval(a *model.Approval) approvalResponse {
	return approvalResponse{
		ID:                a.ID,
		ServerID:          a.ServerID,
		StageCode:         a.StageCode,
		Status:            a.Status,
		SubmittedBy:       a.SubmittedBy,
		SubmittedAt:       a.SubmittedAt,
		ReviewedBy:        a.ReviewedBy,
		ReviewedAt:        a.ReviewedAt,
		Comment:           a.Comment,
		ChecklistSnapshot: a.ChecklistSnapshot,
		CreatedAt:         a.CreatedAt,
	}
}

// approvalWithServerResponse — запись очереди с кратким описанием сервера.
type approvalWithServerResponse struct {
	approvalResponse
	Server serverRefResponse `json:"server"`
}

// SubmitApproval — POST /api/v1/servers/{serverId}/approvals.
// Подаёт сервер на верификацию стадии. Чеклист стадии должен быть
// выполнен, предыдущая стадия — одобрена. Доступ: engineer+.
func (h *APIHandler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")

	var req struct {
		StageCode string `json:"stageCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.StageCode == "" {
		apierrors.ValidationError(w, "Код стадии обязателен")
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	approval, err := h.approvals.Submit(r.Context(), serverID, req.StageCode, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка подачи на верификацию")
		return
	}

	writeJSON(w, http.StatusCreated, mapApproval(approval))
}

// ListServerApprovals — GET /api/v1/servers/{serverId}/approvals.
// Все записи верификации сервера, включая отклонённые.
func (h *APIHandler) ListServerApprovals(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")

	approvals, err := h.approvals.ListByServer(r.Context(), serverID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения верификаций сервера")
		return
	}

	items := make([]approvalResponse, 0, len(approvals))
	for _, a := range approvals {
		items = append(items, mapApproval(a))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, len(items), len(items), 0))
}

// stageCompletionResponse — готовность одной стадии сервера.
type stageCompletionResponse struct {
	StageCode          string            `json:"stageCode"`
	Complete           bool              `json:"complete"`
	ChecklistTotal     int               `json:"checklistTotal"`
	ChecklistCompleted int               `json:"checklistCompleted"`
	Remaining          []string          `json:"remaining"`
	LatestApproval     *approvalResponse `json:"latestApproval,omitempty"`
	CanSubmit          bool              `json:"canSubmit"`
}

// ServerStages — GET /api/v1/servers/{serverId}/stages.
// Сводка прохождения стадий: готовность чеклистов, последние решения,
// возможность подачи.
func (h *APIHandler) ServerStages(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")

	stages, err := h.approvals.StageCompletion(r.Context(), serverID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения сводки стадий")
		return
	}

	items := make([]stageCompletionResponse, 0, len(stages))
	for _, s := range stages {
		items = append(items, mapStageCompletion(s))
	}
	writeJSON(w, http.StatusOK, items)
}

func mapStageCompletion(s *model.StageCompletion) stageCompletionResponse {
	item := stageCompletionResponse{
		StageCode:          s.StageCode,
		Complete:           s.Complete,
		ChecklistTotal:     s.ChecklistTotal,
		ChecklistCompleted: s.ChecklistCompleted,
		Remaining:          s.Remaining,
		CanSubmit:          s.CanSubmit,
	}
	if s.LatestApproval != nil {
		mapped := mapApproval(s.LatestApproval)
		item.LatestApproval = &mapped
	}
	return item
}

// ServerStageCompletion — GET /api/v1/servers/{serverId}/stages/{stageCode}.
// Готовность одной стадии: используется для проверки, может ли сервер
// двигаться дальше по циклу.
func (h *APIHandler) ServerStageCompletion(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")
	stageCode := chi.URLParam(r, "stageCode")

	if !model.IsValidStage(stageCode) {
		apierrors.ValidationError(w, "Неизвестная стадия: "+stageCode)
		return
	}

	stages, err := h.approvals.StageCompletion(r.Context(), serverID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения готовности стадии")
		return
	}

	for _, s := range stages {
		if s.StageCode == stageCode {
			writeJSON(w, http.StatusOK, mapStageCompletion(s))
			return
		}
	}
	apierrors.NotFound(w, "Стадия не найдена: "+stageCode)
}

// GetApproval — GET /api/v1/approvals/{approvalId}.
func (h *APIHandler) GetApproval(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "approvalId")

	approval, err := h.approvals.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения верификации")
		return
	}

	writeJSON(w, http.StatusOK, mapApproval(approval))
}

// ApprovalQueue — GET /api/v1/approvals/queue.
// Очередь PENDING заявок, старые первыми (FIFO). Фильтр stage.
// Доступ: inspector или admin.
func (h *APIHandler) ApprovalQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)

	queue, total, err := h.approvals.Queue(r.Context(), optionalQuery(r, "stage"), limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения очереди верификации")
		return
	}

	items := make([]approvalWithServerResponse, 0, len(queue))
	for _, a := range queue {
		items = append(items, approvalWithServerResponse{
			approvalResponse: mapApproval(&a.Approval),
			Server:           mapServerRef(a.Server),
		})
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// ApprovalStats — GET /api/v1/approvals/stats.
// Сводка для панели инспектора. Доступ: inspector или admin.
func (h *APIHandler) ApprovalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.approvals.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения статистики верификаций")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Pending          int `json:"pending"`
		ApprovedToday    int `json:"approvedToday"`
		RejectedToday    int `json:"rejectedToday"`
		AvgReviewMinutes int `json:"avgReviewMinutes"`
	}{
		Pending:          stats.Pending,
		ApprovedToday:    stats.ApprovedToday,
		RejectedToday:    stats.RejectedToday,
		AvgReviewMinutes: stats.AvgReviewMinutes,
	})
}

// ApproveApproval — POST /api/v1/approvals/{approvalId}/approve.
// Одобряет заявку; сервер переходит в статус стадии. Доступ: inspector
// или admin.
func (h *APIHandler) ApproveApproval(w http.ResponseWriter, r *http.Request) {
	h.resolveApproval(w, r, true)
}

// RejectApproval — POST /api/v1/approvals/{approvalId}/reject.
// Отклоняет заявку; комментарий обязателен. Доступ: inspector или admin.
func (h *APIHandler) RejectApproval(w http.ResponseWriter, r *http.Request) {
	h.resolveApproval(w, r, false)
}

func (h *APIHandler) resolveApproval(w http.ResponseWriter, r *http.Request, approve bool) {
	id := chi.URLParam(r, "approvalId")

	var req struct {
		Comment *string `json:"comment"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
			return
		}
	}

	reviewer := middleware.SubjectFromContext(r.Context())
	var (
		approval *model.Approval
		err      error
	)
	if approve {
		approval, err = h.approvals.Approve(r.Context(), id, reviewer, req.Comment)
	} else {
		approval, err = h.approvals.Reject(r.Context(), id, reviewer, req.Comment)
	}
	if err != nil {
		h.writeServiceError(w, err, "Ошибка рассмотрения верификации")
		return
	}

	writeJSON(w, http.StatusOK, mapApproval(approval))
}
