// checklists.go — обработчики чеклистов: шаблоны стадий и состояние
// пунктов конкретного сервера.
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

// checklistTemplateResponse — шаблон пункта чеклиста в API.
type checklistTemplateResponse struct {
	ID         string `json:"id"`
	StageCode  string `json:"stageCode"`
	GroupCode  string `json:"groupCode"`
	Title      string `json:"title"`
	IsRequired bool   `json:"isRequired"`
	IsActive   bool   `json:"isActive"`
	SortOrder  int    `json:"sortOrder"`
}

func mapChecklistTemplate(t *model.ChecklistTemplate) checklistTemplateResponse {
	return checklistTemplateResponse{
		ID:         t.ID,
		StageCode:  t.StageCode,
		GroupCode:  t.GroupCode,
		Title:      t.Title,
		IsRequired: t.IsRequired,
		IsActive:   t.IsActive,
		SortOrder:  t.SortOrder,
	}
}

// checklistItemResponse — состояние пункта чеклиста сервера.
type checklistItemResponse struct {
	ID          string                     `json:"id"`
	ServerID    string                     `json:"serverId"`
	TemplateID  string                     `json:"templateId"`
	Completed   bool                       `json:"completed"`
	CompletedBy *string                    `json:"completedBy"`
	CompletedAt *time.Time                 `json:"completedAt"`
	Notes       *string                    `json:"notes"`
	Template    *checklistTemplateResponse `json:"template,omitempty"`
}

func mapChecklistItem(item *model.ServerChecklist) checklistItemResponse {
	resp := checklistItemResponse{
		ID:          item.ID,
		ServerID:    item.ServerID,
		TemplateID:  item.TemplateID,
		Completed:   item.Completed,
		CompletedBy: item.CompletedBy,
		CompletedAt: item.CompletedAt,
		Notes:       item.Notes,
	}
	if item.Template != nil {
		mapped := mapChecklistTemplate(item.Template)
		resp.Template = &mapped
	}
	return resp
}

// ChecklistTemplates — GET /api/v1/checklists/templates?stage=...
// Шаблоны пунктов чеклиста стадии.
func (h *APIHandler) ChecklistTemplates(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage == "" {
		apierrors.ValidationError(w, "Параметр stage обязателен")
		return
	}

	templates, err := h.checklists.Templates(r.Context(), stage)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения шаблонов чеклиста")
		return
	}

	items := make([]checklistTemplateResponse, 0, len(templates))
	for _, t := range templates {
		items = append(items, mapChecklistTemplate(t))
	}
	writeJSON(w, http.StatusOK, items)
}

// ServerChecklist — GET /api/v1/servers/{serverId}/checklist?stage=...
// Состояние чеклиста стадии для сервера: все действующие пункты,
// выполненные — с отметками исполнителя.
func (h *APIHandler) ServerChecklist(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")
	stage := r.URL.Query().Get("stage")
	if stage == "" {
		apierrors.ValidationError(w, "Параметр stage обязателен")
		return
	}

	items, err := h.checklists.ServerChecklist(r.Context(), serverID, stage)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения чеклиста сервера")
		return
	}

	resp := make([]checklistItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, mapChecklistItem(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetChecklistItem — PUT /api/v1/servers/{serverId}/checklist/{templateId}.
// Отмечает выполнение (или снимает отметку) пункта чеклиста.
// Доступ: engineer+.
func (h *APIHandler) SetChecklistItem(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")
	templateID := chi.URLParam(r, "templateId")

	var req struct {
		Completed bool    `json:"completed"`
		Notes     *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	item, err := h.checklists.SetItem(r.Context(), serverID, templateID, req.Completed, req.Notes, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка отметки пункта чеклиста")
		return
	}

	writeJSON(w, http.StatusOK, mapChecklistItem(item))
}
