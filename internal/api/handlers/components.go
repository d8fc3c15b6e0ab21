// components.go — обработчики комплектующих: добавление (одиночное и
// пакетное), обновление, коррекция серийных номеров, замена, удаление,
// поиск по парку и проверка доступности номера.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/yadro-qms/beryll-tracking/internal/api/errors"
	"github.com/yadro-qms/beryll-tracking/internal/api/middleware"
	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
	"github.com/yadro-qms/beryll-tracking/internal/service"
)

// componentResponse — представление комплектующего в API.
type componentResponse struct {
	ID                  string         `json:"id"`
	ServerID            string         `json:"serverId"`
	ComponentType       string         `json:"componentType"`
	Name                string         `json:"name"`
	Manufacturer        *string        `json:"manufacturer"`
	Model               *string        `json:"model"`
	PartNumber          *string        `json:"partNumber"`
	Slot                *string        `json:"slot"`
	Capacity            *int64         `json:"capacity"`
	Speed               *int           `json:"speed"`
	SerialNumber        *string        `json:"serialNumber"`
	SerialNumberYadro   *string        `json:"serialNumberYadro"`
	Status              string         `json:"status"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	DataSource          string         `json:"dataSource"`
	InstalledBy         *string        `json:"installedBy"`
	Notes               *string        `json:"notes"`
	ReplacedAt          *time.Time     `json:"replacedAt,omitempty"`
	ReplacedBy          *string        `json:"replacedBy,omitempty"`
	ReplacementReason   *string        `json:"replacementReason,omitempty"`
	ReplacesComponentID *string        `json:"replacesComponentId,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func mapComponent(c *model.Component) componentResponse {
	return componentResponse{
		ID:                  c.ID,
		ServerID:            c.ServerID,
		ComponentType:       c.ComponentType,
		Name:                c.Name,
		Manufacturer:        c.Manufacturer,
		Model:               c.Model,
		PartNumber:          c.PartNumber,
		Slot:                c.Slot,
		Capacity:            c.Capacity,
		Speed:               c.Speed,
		SerialNumber:        c.SerialNumber,
		SerialNumberYadro:   c.SerialNumberYadro,
		Status:              c.Status,
		Metadata:            c.Metadata,
		DataSource:          c.DataSource,
		InstalledBy:         c.InstalledBy,
		Notes:               c.Notes,
		ReplacedAt:          c.ReplacedAt,
		ReplacedBy:          c.ReplacedBy,
		ReplacementReason:   c.ReplacementReason,
		ReplacesComponentID: c.ReplacesComponentID,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// componentWithServerResponse — комплектующее с кратким описанием сервера.
type componentWithServerResponse struct {
	componentResponse
	Server serverRefResponse `json:"server"`
}

func mapComponentWithServer(c *model.ComponentWithServer) componentWithServerResponse {
	return componentWithServerResponse{
		componentResponse: mapComponent(&c.Component),
		Server:            mapServerRef(c.Server),
	}
}

// serialConflictDetails — детали ответа 409 SERIAL_CONFLICT.
type serialConflictDetails struct {
	Serial   string                       `json:"serial"`
	Existing *componentWithServerResponse `json:"existing,omitempty"`
}

func mapSerialConflict(e *service.SerialConflictError) serialConflictDetails {
	d := serialConflictDetails{Serial: e.Serial}
	if e.Existing != nil {
		mapped := mapComponentWithServer(e.Existing)
		d.Existing = &mapped
	}
	return d
}

// addComponentRequest — тело добавления комплектующего (одиночного
// и позиции пакета).
type addComponentRequest struct {
	ComponentType     string         `json:"componentType"`
	Name              string         `json:"name"`
	Manufacturer      *string        `json:"manufacturer"`
	Model             *string        `json:"model"`
	PartNumber        *string        `json:"partNumber"`
	Slot              *string        `json:"slot"`
	Capacity          *int64         `json:"capacity"`
	Speed             *int           `json:"speed"`
	SerialNumber      *string        `json:"serialNumber"`
	SerialNumberYadro *string        `json:"serialNumberYadro"`
	Status            *string        `json:"status"`
	Metadata          map[string]any `json:"metadata"`
	Notes             *string        `json:"notes"`
}

func (req *addComponentRequest) toInput() service.AddComponentInput {
	return service.AddComponentInput{
		ComponentType:     req.ComponentType,
		Name:              req.Name,
		Manufacturer:      req.Manufacturer,
		Model:             req.Model,
		PartNumber:        req.PartNumber,
		Slot:              req.Slot,
		Capacity:          req.Capacity,
		Speed:             req.Speed,
		SerialNumber:      req.SerialNumber,
		SerialNumberYadro: req.SerialNumberYadro,
		Status:            req.Status,
		Metadata:          req.Metadata,
		Notes:             req.Notes,
	}
}

// AddComponent — POST /api/v1/servers/{serverId}/components.
// Добавляет комплектующее в сервер. Доступ: engineer+ или SA с beryll:write.
func (h *APIHandler) AddComponent(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")

	var req addComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	c, err := h.components.Add(r.Context(), serverID, req.toInput(), actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка добавления комплектующего")
		return
	}

	writeJSON(w, http.StatusCreated, mapComponent(c))
}

// ListComponents — GET /api/v1/servers/{serverId}/components.
// Комплектующие сервера, опциональный фильтр type.
func (h *APIHandler) ListComponents(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")

	components, err := h.components.ListByServer(r.Context(), serverID, optionalQuery(r, "type"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения комплектующих")
		return
	}

	items := make([]componentResponse, 0, len(components))
	for _, c := range components {
		items = append(items, mapComponent(c))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, len(items), len(items), 0))
}

// batchAddResponse — итог пакетного добавления: созданные комплектующие
// и отклонённые позиции с причинами.
type batchAddResponse struct {
	Added  []componentResponse `json:"added"`
	Failed []batchItemFailure  `json:"failed"`
}

type batchItemFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchAddComponents — POST /api/v1/servers/{serverId}/components/batch.
// Пакетное добавление: отказ позиции не откатывает остальные.
// Доступ: engineer+ или SA с beryll:write.
func (h *APIHandler) BatchAddComponents(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")

	var req struct {
		Items []addComponentRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	inputs := make([]service.AddComponentInput, 0, len(req.Items))
	for i := range req.Items {
		inputs = append(inputs, req.Items[i].toInput())
	}

	actor := middleware.SubjectFromContext(r.Context())
	result, err := h.components.BatchAdd(r.Context(), serverID, inputs, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка пакетного добавления комплектующих")
		return
	}

	resp := batchAddResponse{
		Added:  make([]componentResponse, 0, len(result.Added)),
		Failed: make([]batchItemFailure, 0, len(result.Failed)),
	}
	for _, c := range result.Added {
		resp.Added = append(resp.Added, mapComponent(c))
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, batchItemFailure{Index: f.Index, Error: f.Err.Error()})
	}

	// 207: часть позиций могла быть отклонена, клиент разбирает ответ.
	status := http.StatusCreated
	if len(resp.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// GetComponent — GET /api/v1/components/{componentId}.
func (h *APIHandler) GetComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentId")

	c, err := h.components.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения комплектующего")
		return
	}

	writeJSON(w, http.StatusOK, mapComponent(c))
}

// UpdateComponent — PATCH /api/v1/components/{componentId}.
// Обновляет изменяемые атрибуты; серийные номера меняются только через
// /serials и /replace. Доступ: engineer+.
func (h *APIHandler) UpdateComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentId")

	var req struct {
		Name         *string         `json:"name"`
		Manufacturer *string         `json:"manufacturer"`
		Model        *string         `json:"model"`
		PartNumber   *string         `json:"partNumber"`
		Slot         *string         `json:"slot"`
		Capacity     *int64          `json:"capacity"`
		Speed        *int            `json:"speed"`
		Status       *string         `json:"status"`
		Metadata     json.RawMessage `json:"metadata"`
		Notes        *string         `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	metadata, clearMetadata, err := decodeMetadataPatch(req.Metadata)
	if err != nil {
		apierrors.ValidationError(w, "Некорректные метаданные: "+err.Error())
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	c, err := h.components.Update(r.Context(), id, service.UpdateComponentInput{
		Name:          req.Name,
		Manufacturer:  req.Manufacturer,
		Model:         req.Model,
		PartNumber:    req.PartNumber,
		Slot:          req.Slot,
		Capacity:      req.Capacity,
		Speed:         req.Speed,
		Status:        req.Status,
		Metadata:      metadata,
		ClearMetadata: clearMetadata,
		Notes:         req.Notes,
	}, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления комплектующего")
		return
	}

	writeJSON(w, http.StatusOK, mapComponent(c))
}

// decodeMetadataPatch разбирает поле metadata запроса обновления.
// Отсутствующее поле не трогает метаданные, явный null сбрасывает их
// целиком, объект сливается поверх существующих.
func decodeMetadataPatch(raw json.RawMessage) (map[string]any, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if string(raw) == "null" {
		return nil, true, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// UpdateComponentSerials — PUT /api/v1/components/{componentId}/serials.
// Коррекция серийных номеров (исправление опечатки ввода). Оба поля
// задаются целиком. Доступ: engineer+.
func (h *APIHandler) UpdateComponentSerials(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentId")

	var req struct {
		SerialNumber      *string `json:"serialNumber"`
		SerialNumberYadro *string `json:"serialNumberYadro"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	c, err := h.components.UpdateSerials(r.Context(), id, req.SerialNumber, req.SerialNumberYadro, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка коррекции серийных номеров")
		return
	}

	writeJSON(w, http.StatusOK, mapComponent(c))
}

// ReplaceComponent — POST /api/v1/components/{componentId}/replace.
// Замена комплектующего: прежний экземпляр помечается REPLACED,
// преемник наследует слот и характеристики. Доступ: engineer+.
func (h *APIHandler) ReplaceComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentId")

	var req struct {
		SerialNumber      *string `json:"serialNumber"`
		SerialNumberYadro *string `json:"serialNumberYadro"`
		Name              *string `json:"name"`
		Manufacturer      *string `json:"manufacturer"`
		Model             *string `json:"model"`
		PartNumber        *string `json:"partNumber"`
		Reason            *string `json:"reason"`
		Notes             *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	actor := middleware.SubjectFromContext(r.Context())
	successor, err := h.components.Replace(r.Context(), id, service.ReplaceComponentInput{
		SerialNumber:      req.SerialNumber,
		SerialNumberYadro: req.SerialNumberYadro,
		Name:              req.Name,
		Manufacturer:      req.Manufacturer,
		Model:             req.Model,
		PartNumber:        req.PartNumber,
		Reason:            req.Reason,
		Notes:             req.Notes,
	}, actor)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка замены комплектующего")
		return
	}

	writeJSON(w, http.StatusCreated, mapComponent(successor))
}

// DeleteComponent — DELETE /api/v1/components/{componentId}.
// Удаляет ошибочно внесённое комплектующее; снимок уходит в историю
// до удаления. Доступ: admin.
func (h *APIHandler) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentId")

	actor := middleware.SubjectFromContext(r.Context())
	if err := h.components.Delete(r.Context(), id, actor, optionalQuery(r, "reason")); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления комплектующего")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchComponents — GET /api/v1/components/search?q=&type=&status=&serverId=
// Поиск комплектующих во всём парке. Хотя бы один параметр обязателен.
func (h *APIHandler) SearchComponents(w http.ResponseWriter, r *http.Request) {
	filter := repository.ComponentSearchFilter{
		Query:    optionalQuery(r, "q"),
		Type:     optionalQuery(r, "type"),
		Status:   optionalQuery(r, "status"),
		ServerID: optionalQuery(r, "serverId"),
	}
	// serial — алиас q, под него заточены сканеры штрихкодов.
	if filter.Query == nil {
		filter.Query = optionalQuery(r, "serial")
	}
	limit, offset := paginationParams(r)

	results, err := h.components.Search(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка поиска комплектующих")
		return
	}

	items := make([]componentWithServerResponse, 0, len(results))
	for _, c := range results {
		items = append(items, mapComponentWithServer(c))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, len(items), limit, offset))
}

// ScanSerial — GET /api/v1/components/scan?serial=...
// Поиск по отсканированному штрихкоду: точное совпадение, при промахе —
// кандидаты по подстроке.
func (h *APIHandler) ScanSerial(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")
	limit, _ := paginationParams(r)

	results, err := h.components.ScanSerial(r.Context(), serial, limit)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка поиска по отсканированному номеру")
		return
	}

	items := make([]componentWithServerResponse, 0, len(results))
	for _, c := range results {
		items = append(items, mapComponentWithServer(c))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, len(items), limit, 0))
}

// serialCheckResponse — ответ проверки доступности серийного номера.
type serialCheckResponse struct {
	Serial    string                       `json:"serial"`
	Available bool                         `json:"available"`
	Existing  *componentWithServerResponse `json:"existing,omitempty"`
}

// CheckSerial — GET /api/v1/components/check-serial?serial=...
// Предпроверка номера перед вводом (сканер штрихкодов). Без мутаций;
// авторитетна только проверка при записи.
func (h *APIHandler) CheckSerial(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")

	result, err := h.components.CheckSerial(r.Context(), serial)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка проверки серийного номера")
		return
	}

	resp := serialCheckResponse{Serial: result.Serial, Available: result.Available}
	if result.Existing != nil {
		mapped := mapComponentWithServer(result.Existing)
		resp.Existing = &mapped
	}
	writeJSON(w, http.StatusOK, resp)
}
