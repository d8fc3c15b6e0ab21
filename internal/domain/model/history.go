package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Виды событий истории. Закрытый набор: каждому виду соответствует
// свой типизированный payload (см. конструкторы ниже).
const (
	ActionServerCreated     = "SERVER_CREATED"
	ActionStatusChanged     = "STATUS_CHANGED"
	ActionComponentAdded    = "COMPONENT_ADDED"
	ActionComponentUpdated  = "COMPONENT_UPDATED"
	ActionSerialsUpdated    = "COMPONENT_SERIALS_UPDATED"
	ActionComponentReplaced = "COMPONENT_REPLACED"
	ActionComponentDeleted  = "COMPONENT_DELETED"
	ActionBatchAdded        = "COMPONENTS_BATCH_ADDED"
	ActionChecklistDone     = "CHECKLIST_COMPLETED"
	ActionApprovalSubmitted = "APPROVAL_SUBMITTED"
	ActionApprovalApproved  = "APPROVAL_APPROVED"
	ActionApprovalRejected  = "APPROVAL_REJECTED"
	ActionServerArchived    = "SERVER_ARCHIVED"
)

// historyActions — допустимые виды событий.
var historyActions = map[string]bool{
	ActionServerCreated:     true,
	ActionStatusChanged:     true,
	ActionComponentAdded:    true,
	ActionComponentUpdated:  true,
	ActionSerialsUpdated:    true,
	ActionComponentReplaced: true,
	ActionComponentDeleted:  true,
	ActionBatchAdded:        true,
	ActionChecklistDone:     true,
	ActionApprovalSubmitted: true,
	ActionApprovalApproved:  true,
	ActionApprovalRejected:  true,
	ActionServerArchived:    true,
}

// ComponentActions — виды событий, относящиеся к комплектующим.
// Используется фильтрами истории комплектующих.
var ComponentActions = []string{
	ActionComponentAdded, ActionComponentUpdated, ActionSerialsUpdated,
	ActionComponentReplaced, ActionComponentDeleted, ActionBatchAdded,
}

// IsValidHistoryAction проверяет допустимость вида события.
func IsValidHistoryAction(a string) bool {
	return historyActions[a]
}

// HistoryEvent — неизменяемая запись аудита. Хранится в таблице
// history_events; создаётся ровно один раз в той же транзакции, что и
// описываемая мутация. Никогда не обновляется и не удаляется.
// Payload ссылается на комплектующие и верификации значениями id,
// а не внешними ключами: история переживает удаление сущностей.
type HistoryEvent struct {
	// ID — UUID записи
	ID string
	// ServerID — сервер, к которому относится событие
	ServerID string
	// Actor — кто выполнил операцию (sub из JWT)
	Actor string
	// Action — вид события (закрытый набор)
	Action string
	// Payload — типизированный payload, сериализованный в JSONB
	Payload json.RawMessage
	// CreatedAt — время события
	CreatedAt time.Time
}

// --- Типизированные payload по видам событий ---

// ComponentAddedPayload — payload COMPONENT_ADDED.
type ComponentAddedPayload struct {
	ComponentID       string  `json:"componentId"`
	ComponentType     string  `json:"componentType"`
	Name              string  `json:"name"`
	SerialNumber      *string `json:"serialNumber"`
	SerialNumberYadro *string `json:"serialNumberYadro"`
}

// ComponentUpdatedPayload — payload COMPONENT_UPDATED.
// Содержит полные снимки бизнес-полей до и после изменения.
type ComponentUpdatedPayload struct {
	ComponentID   string         `json:"componentId"`
	ComponentType string         `json:"componentType"`
	OldValues     map[string]any `json:"oldValues"`
	NewValues     map[string]any `json:"newValues"`
}

// SerialsUpdatedPayload — payload COMPONENT_SERIALS_UPDATED.
type SerialsUpdatedPayload struct {
	ComponentID string            `json:"componentId"`
	OldSerials  map[string]*string `json:"oldSerials"`
	NewSerials  map[string]*string `json:"newSerials"`
}

// ComponentReplacedPayload — payload COMPONENT_REPLACED.
// Связывает оба комплектующих пары old → new.
type ComponentReplacedPayload struct {
	OldComponentID string  `json:"oldComponentId"`
	NewComponentID string  `json:"newComponentId"`
	ComponentType  string  `json:"componentType"`
	OldSerial      string  `json:"oldSerial"`
	NewSerial      string  `json:"newSerial"`
	Reason         *string `json:"reason"`
}

// ComponentDeletedPayload — payload COMPONENT_DELETED.
// Снимок удалённого комплектующего: история переживает удаление.
type ComponentDeletedPayload struct {
	ComponentID       string  `json:"componentId"`
	ComponentType     string  `json:"componentType"`
	Name              string  `json:"name"`
	SerialNumber      *string `json:"serialNumber"`
	SerialNumberYadro *string `json:"serialNumberYadro"`
	Reason            *string `json:"reason"`
}

// BatchAddedPayload — payload COMPONENTS_BATCH_ADDED.
type BatchAddedPayload struct {
	Count        int      `json:"count"`
	ComponentIDs []string `json:"componentIds"`
	FailedCount  int      `json:"failedCount"`
}

// ServerCreatedPayload — payload SERVER_CREATED.
type ServerCreatedPayload struct {
	SerialNumber    *string `json:"serialNumber"`
	APKSerialNumber *string `json:"apkSerialNumber"`
	Hostname        *string `json:"hostname"`
}

// StatusChangedPayload — payload STATUS_CHANGED и SERVER_ARCHIVED.
type StatusChangedPayload struct {
	FromStatus string  `json:"fromStatus"`
	ToStatus   string  `json:"toStatus"`
	Comment    *string `json:"comment,omitempty"`
}

// ApprovalPayload — payload APPROVAL_SUBMITTED/APPROVED/REJECTED.
type ApprovalPayload struct {
	ApprovalID string  `json:"approvalId"`
	StageCode  string  `json:"stageCode"`
	Comment    *string `json:"comment,omitempty"`
}

// ChecklistCompletedPayload — payload CHECKLIST_COMPLETED.
type ChecklistCompletedPayload struct {
	TemplateID string `json:"templateId"`
	Title      string `json:"title"`
	Completed  bool   `json:"completed"`
}

// NewHistoryEvent формирует событие истории, сериализуя типизированный
// payload. Вид события валидируется на запись: незнакомый action — ошибка
// программиста, а не данные.
func NewHistoryEvent(serverID, actor, action string, payload any) (*HistoryEvent, error) {
	if !IsValidHistoryAction(action) {
		return nil, fmt.Errorf("недопустимый вид события истории: %q", action)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация payload события %s: %w", action, err)
	}
	return &HistoryEvent{
		ServerID: serverID,
		Actor:    actor,
		Action:   action,
		Payload:  raw,
	}, nil
}
