// servers.go — обработчики /api/v1/servers: постановка на учёт, карточка,
// смена статуса, архивация, история.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/yadro-qms/beryll-tracking/internal/api/errors"
	"github.com/yadro-qms/beryll-tracking/internal/api/middleware"
	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
	"github.com/yadro-qms/beryll-tracking/internal/service"
)

// serverResponse — представление сервера в API.
type serverResponse struct {
	ID              string    `json:"id"`
	SerialNumber    *string   `json:"serialNumber"`
	APKSerialNumber *string   `json:"apkSerialNumber"`
	Hostname        *string   `json:"hostname"`
	IPAddress       *string   `json:"ipAddress"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func mapServer(s *model.Server) serverResponse {
	return serverResponse{
		ID:              s.ID,
		SerialNumber:    s.SerialNumber,
		APKSerialNumber: s.APKSerialNumber,
		Hostname:        s.Hostname,
		IPAddress:       s.IPAddress,
		Status:          s.Status,
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// serverRefResponse — краткая ссылка на сервер во вложенных ответах.
type serverRefResponse struct {
	ID              string  `json:"id"`
	SerialNumber    *string `json:"serialNumber"`
	APKSerialNumber *string `json:"apkSerialNumber"`
	Hostname        *string `json:"hostname"`
	IPAddress       *string `json:"ipAddress"`
	Status          string  `json:"status"`
}

func mapServerRef(ref model.ServerRef) serverRefResponse {
	return serverRefResponse{
		ID:              ref.ID,
		SerialNumber:    ref.SerialNumber,
		APKSerialNumber: ref.APKSerialNumber,
		Hostname:        ref.Hostname,
		IPAddress:       ref.IPAddress,
		Status:          ref.Status,
	}
}

// serverRequest — тело запросов создания и обновления сервера.
type serverRequest struct {
	SerialNumber    *string `json:"serialNumber"`
	APKSerialNumber *string `json:"apkSerialNumber"`
	Hostname        *string `json:"hostname"`
	IPAddress       *string `json:"ipAddress"`
	Notes           *string `json:"notes"`
}

// CreateServer — POST /api/v1/servers.
// Ставит сервер на учёт. Доступ: engineer+.
func (h *APIHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	srv, err := h.servers.Create(r.Context(), service.CreateServerInput{
		SerialNumber:    req.SerialNumber,
		APKSerialNumber: req.APKSerialNumber,
		Hostname:        req.Hostname,
		IPAddress:       req.IPAddress,
		Notes:           req.Notes,
	}, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка постановки сервера на учёт")
		return
	}

	writeJSON(w, http.StatusCreated, mapServer(srv))
}

// ListServers — GET /api/v1/servers.
// Постраничный список с фильтрами status и search.
func (h *APIHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	filter := repository.ServerFilter{
		Status: optionalQuery(r, "status"),
		Search: optionalQuery(r, "search"),
	}

	if filter.Status != nil && !model.IsValidServerStatus(*filter.Status) {
		apierrors.ValidationError(w, "Недопустимый статус сервера: "+*filter.Status)
		return
	}

	servers, total, err := h.servers.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка серверов")
		return
	}

	items := make([]serverResponse, 0, len(servers))
	for _, s := range servers {
		items = append(items, mapServer(s))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// serverDetailResponse — карточка сервера с комплектующими.
type serverDetailResponse struct {
	serverResponse
	Components []componentResponse `json:"components"`
}

// GetServer — GET /api/v1/servers/{serverId}.
// Карточка сервера с комплектующими.
func (h *APIHandler) GetServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "serverId")

	detail, err := h.servers.GetDetail(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения сервера")
		return
	}

	resp := serverDetailResponse{
		serverResponse: mapServer(detail.Server),
		Components:     make([]componentResponse, 0, len(detail.Components)),
	}
	for _, c := range detail.Components {
		resp.Components = append(resp.Components, mapComponent(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateServer — PATCH /api/v1/servers/{serverId}.
// Обновляет атрибуты сервера. Доступ: engineer+.
func (h *APIHandler) UpdateServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "serverId")

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	srv, err := h.servers.Update(r.Context(), id, service.UpdateServerInput{
		SerialNumber:    req.SerialNumber,
		APKSerialNumber: req.APKSerialNumber,
		Hostname:        req.Hostname,
		IPAddress:       req.IPAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления сервера")
		return
	}

	writeJSON(w, http.StatusOK, mapServer(srv))
}

// ChangeServerStatus — POST /api/v1/servers/{serverId}/status.
// Ручной перевод статуса (только NEW <-> IN_WORK; стадийные статусы
// присваиваются через верификацию). Доступ: engineer+.
func (h *APIHandler) ChangeServerStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "serverId")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Status == "" {
		apierrors.ValidationError(w, "Статус обязателен")
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	srv, err := h.servers.ChangeStatus(r.Context(), id, req.Status, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка смены статуса сервера")
		return
	}

	writeJSON(w, http.StatusOK, mapServer(srv))
}

// ArchiveServer — POST /api/v1/servers/{serverId}/archive.
// Выводит сервер из учёта. Доступ: admin.
func (h *APIHandler) ArchiveServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "serverId")

	var req struct {
		Comment *string `json:"comment"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
			return
		}
	}

	actor := middleware.SubjectFromContext(r.Context())
	srv, err := h.servers.Archive(r.Context(), id, actor, req.Comment)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка архивации сервера")
		return
	}

	writeJSON(w, http.StatusOK, mapServer(srv))
}

// historyEventResponse — запись аудита в API.
type historyEventResponse struct {
	ID        string          `json:"id"`
	ServerID  string          `json:"serverId"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

func mapHistoryEvent(e *model.HistoryEvent) historyEventResponse {
	return historyEventResponse{
		ID:        e.ID,
		ServerID:  e.ServerID,
		Actor:     e.Actor,
		Action:    e.Action,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

// ServerHistory — GET /api/v1/servers/{serverId}/history.
// История изменений сервера, новые события первыми. Фильтры: action
// (повторяемый), componentId (события конкретного комплектующего).
func (h *APIHandler) ServerHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "serverId")
	limit, offset := paginationParams(r)

	var (
		events []*model.HistoryEvent
		total  int
		err    error
	)
	if componentID := r.URL.Query().Get("componentId"); componentID != "" {
		events, total, err = h.history.ComponentHistory(r.Context(), id, componentID, limit, offset)
	} else {
		actions := r.URL.Query()["action"]
		events, total, err = h.history.ListByServer(r.Context(), id, actions, limit, offset)
	}
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения истории сервера")
		return
	}

	items := make([]historyEventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, mapHistoryEvent(e))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// writeServiceError отображает ошибки сервисного слоя в HTTP-ответы.
// Конфликт серийного номера получает детали в body (какой номер, за кем
// числится); прочие доменные конфликты — собственные коды 409.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var serialErr *service.SerialConflictError
	if errors.As(err, &serialErr) {
		apierrors.SerialConflict(w, serialErr.Error(), mapSerialConflict(serialErr))
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidRole):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrServerArchived):
		apierrors.ServerArchived(w, err.Error())
	case errors.Is(err, service.ErrComponentReplaced):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrChecklistIncomplete):
		apierrors.ChecklistIncomplete(w, err.Error())
	case errors.Is(err, service.ErrStageOrder):
		apierrors.StageOrder(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error(logMsg, "error", err)
		apierrors.InternalError(w, logMsg)
	}
}
