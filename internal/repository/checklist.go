package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// ChecklistRepository — интерфейс доступа к таблицам checklist_templates
// и server_checklists.
type ChecklistRepository interface {
	// Templates возвращает действующие шаблоны стадии в порядке sort_order.
	Templates(ctx context.Context, stageCode string) ([]*model.ChecklistTemplate, error)
	// GetTemplate возвращает шаблон по UUID.
	GetTemplate(ctx context.Context, id string) (*model.ChecklistTemplate, error)
	// ServerItems возвращает состояние чеклиста сервера по стадии
	// вместе с шаблонами пунктов.
	ServerItems(ctx context.Context, serverID, stageCode string) ([]*model.ServerChecklist, error)
	// UpsertItem создаёт или обновляет отметку пункта для сервера.
	UpsertItem(ctx context.Context, item *model.ServerChecklist) error
}

// checklistRepo — реализация ChecklistRepository.
type checklistRepo struct {
	db DBTX
}

// NewChecklistRepository создаёт репозиторий чеклистов.
func NewChecklistRepository(db DBTX) ChecklistRepository {
	return &checklistRepo{db: db}
}

const templateColumns = `id, stage_code, group_code, title, is_required, is_active, sort_order`

func (r *checklistRepo) Templates(ctx context.Context, stageCode string) ([]*model.ChecklistTemplate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM checklist_templates
		WHERE stage_code = $1 AND is_active
		ORDER BY sort_order, title`, templateColumns)

	rows, err := r.db.Query(ctx, query, stageCode)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения шаблонов чеклиста: %w", err)
	}
	defer rows.Close()

	var result []*model.ChecklistTemplate
	for rows.Next() {
		tpl := &model.ChecklistTemplate{}
		if err := rows.Scan(
			&tpl.ID, &tpl.StageCode, &tpl.GroupCode, &tpl.Title,
			&tpl.IsRequired, &tpl.IsActive, &tpl.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования шаблона: %w", err)
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

func (r *checklistRepo) GetTemplate(ctx context.Context, id string) (*model.ChecklistTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM checklist_templates WHERE id = $1`, templateColumns)

	tpl := &model.ChecklistTemplate{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tpl.ID, &tpl.StageCode, &tpl.GroupCode, &tpl.Title,
		&tpl.IsRequired, &tpl.IsActive, &tpl.SortOrder,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения шаблона: %w", err)
	}
	return tpl, nil
}

func (r *checklistRepo) ServerItems(ctx context.Context, serverID, stageCode string) ([]*model.ServerChecklist, error) {
	// LEFT JOIN от шаблонов: пункты без отметки тоже попадают в выдачу.
	query := `
		SELECT t.id, t.stage_code, t.group_code, t.title, t.is_required, t.is_active, t.sort_order,
			sc.id, sc.completed, sc.completed_by, sc.completed_at, sc.notes
		FROM checklist_templates t
		LEFT JOIN server_checklists sc ON sc.template_id = t.id AND sc.server_id = $1
		WHERE t.stage_code = $2 AND t.is_active
		ORDER BY t.sort_order, t.title`

	rows, err := r.db.Query(ctx, query, serverID, stageCode)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения чеклиста сервера: %w", err)
	}
	defer rows.Close()

	var result []*model.ServerChecklist
	for rows.Next() {
		tpl := &model.ChecklistTemplate{}
		item := &model.ServerChecklist{ServerID: serverID, Template: tpl}
		var itemID *string
		var completed *bool
		if err := rows.Scan(
			&tpl.ID, &tpl.StageCode, &tpl.GroupCode, &tpl.Title,
			&tpl.IsRequired, &tpl.IsActive, &tpl.SortOrder,
			&itemID, &completed, &item.CompletedBy, &item.CompletedAt, &item.Notes,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пункта чеклиста: %w", err)
		}
		item.TemplateID = tpl.ID
		if itemID != nil {
			item.ID = *itemID
		}
		if completed != nil {
			item.Completed = *completed
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *checklistRepo) UpsertItem(ctx context.Context, item *model.ServerChecklist) error {
	query := `
		INSERT INTO server_checklists (id, server_id, template_id, completed, completed_by, completed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (server_id, template_id) DO UPDATE SET
			completed = EXCLUDED.completed,
			completed_by = EXCLUDED.completed_by,
			completed_at = EXCLUDED.completed_at,
			notes = EXCLUDED.notes
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		item.ID, item.ServerID, item.TemplateID,
		item.Completed, item.CompletedBy, item.CompletedAt, item.Notes,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("ошибка отметки пункта чеклиста: %w", err)
	}
	return nil
}
