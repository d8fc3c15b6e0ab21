package model

import "time"

// Группы пунктов чеклиста.
const (
	ChecklistGroupPreparation = "PREPARATION"
	ChecklistGroupAssembly    = "ASSEMBLY"
	ChecklistGroupTesting     = "TESTING"
	ChecklistGroupBurnIn      = "BURN_IN"
	ChecklistGroupFinal       = "FINAL"
)

// ChecklistTemplate — шаблон пункта чеклиста стадии.
// Хранится в таблице checklist_templates; меняется редко, кэшируется.
type ChecklistTemplate struct {
	// ID — UUID записи
	ID string
	// StageCode — стадия, к которой относится пункт
	StageCode string
	// GroupCode — группа пунктов (PREPARATION, ASSEMBLY, ...)
	GroupCode string
	// Title — формулировка пункта
	Title string
	// IsRequired — обязателен для подачи на верификацию
	IsRequired bool
	// IsActive — действующий пункт (неактивные сохраняются для истории)
	IsActive bool
	// SortOrder — порядок отображения
	SortOrder int
}

// ServerChecklist — состояние пункта чеклиста для конкретного сервера.
// Хранится в таблице server_checklists; уникальна пара (сервер, шаблон).
type ServerChecklist struct {
	// ID — UUID записи
	ID string
	// ServerID — сервер
	ServerID string
	// TemplateID — пункт чеклиста
	TemplateID string
	// Completed — пункт выполнен
	Completed bool
	// CompletedBy — кто отметил выполнение (sub из JWT)
	CompletedBy *string
	// CompletedAt — время отметки
	CompletedAt *time.Time
	// Notes — заметки исполнителя
	Notes *string
	// Template — шаблон пункта (заполняется при выборке)
	Template *ChecklistTemplate
}

// ChecklistSnapshotItem — строка снимка чеклиста, сохраняемого в Approval.
type ChecklistSnapshotItem struct {
	TemplateID  string     `json:"templateId"`
	Title       string     `json:"title"`
	GroupCode   string     `json:"groupCode"`
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	CompletedBy *string    `json:"completedBy"`
	CompletedAt *time.Time `json:"completedAt"`
	Notes       *string    `json:"notes"`
}
