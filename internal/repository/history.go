package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// HistoryFilter — фильтры выборки истории.
type HistoryFilter struct {
	// Actions — ограничение по видам событий (nil — все)
	Actions []string
	// ComponentID — события конкретного комплектующего (по payload)
	ComponentID *string
}

// HistoryRepository — интерфейс записи и чтения истории операций.
// Записи append-only: Update и Delete отсутствуют намеренно.
type HistoryRepository interface {
	// Create записывает событие истории.
	Create(ctx context.Context, e *model.HistoryEvent) error
	// ListByServer возвращает события сервера, новые первыми.
	ListByServer(ctx context.Context, serverID string, filter HistoryFilter, limit, offset int) ([]*model.HistoryEvent, error)
	// CountByServer возвращает количество событий сервера.
	CountByServer(ctx context.Context, serverID string, filter HistoryFilter) (int, error)
}

// historyRepo — реализация HistoryRepository.
type historyRepo struct {
	db DBTX
}

// NewHistoryRepository создаёт репозиторий истории.
func NewHistoryRepository(db DBTX) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Create(ctx context.Context, e *model.HistoryEvent) error {
	query := `
		INSERT INTO history_events (id, server_id, actor, action, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		e.ID, e.ServerID, e.Actor, e.Action, e.Payload,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи события истории: %w", err)
	}
	return nil
}

// buildHistoryWhere строит условия WHERE по фильтру. serverID всегда $1.
func buildHistoryWhere(serverID string, filter HistoryFilter) (string, []any) {
	conditions := []string{"server_id = $1"}
	args := []any{serverID}

	if len(filter.Actions) > 0 {
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", len(args)+1))
		args = append(args, filter.Actions)
	}
	if filter.ComponentID != nil {
		// События комплектующего ищутся по ссылкам в payload:
		// история переживает удаление самих комплектующих. Итоговые
		// события пакета держат ids массивом componentIds.
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			`(payload->>'componentId' = $%d
				OR payload->>'oldComponentId' = $%d
				OR payload->>'newComponentId' = $%d
				OR payload->'componentIds' ? $%d)`,
			n, n, n, n))
		args = append(args, *filter.ComponentID)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *historyRepo) ListByServer(ctx context.Context, serverID string, filter HistoryFilter, limit, offset int) ([]*model.HistoryEvent, error) {
	where, args := buildHistoryWhere(serverID, filter)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT id, server_id, actor, action, payload, created_at
		FROM history_events
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var result []*model.HistoryEvent
	for rows.Next() {
		e := &model.HistoryEvent{}
		if err := rows.Scan(
			&e.ID, &e.ServerID, &e.Actor, &e.Action, &e.Payload, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования события истории: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *historyRepo) CountByServer(ctx context.Context, serverID string, filter HistoryFilter) (int, error) {
	where, args := buildHistoryWhere(serverID, filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM history_events %s`, where)

	var count int
	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта событий истории: %w", err)
	}
	return count, nil
}
