package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// ServerFilter — фильтры списка серверов.
type ServerFilter struct {
	// Status — фильтр по статусу жизненного цикла
	Status *string
	// Search — подстрока для поиска по серийным номерам и hostname
	Search *string
}

// ServerRepository — интерфейс CRUD для таблицы servers.
type ServerRepository interface {
	// Create создаёт новый сервер.
	Create(ctx context.Context, s *model.Server) error
	// GetByID возвращает сервер по UUID.
	GetByID(ctx context.Context, id string) (*model.Server, error)
	// List возвращает список серверов с фильтрацией.
	List(ctx context.Context, filter ServerFilter, limit, offset int) ([]*model.Server, error)
	// Count возвращает количество серверов с фильтрацией.
	Count(ctx context.Context, filter ServerFilter) (int, error)
	// Update обновляет атрибуты сервера.
	Update(ctx context.Context, s *model.Server) error
	// UpdateStatus переводит сервер в новый статус.
	UpdateStatus(ctx context.Context, id, status string) error
}

// serverRepo — реализация ServerRepository.
type serverRepo struct {
	db DBTX
}

// NewServerRepository создаёт репозиторий серверов.
func NewServerRepository(db DBTX) ServerRepository {
	return &serverRepo{db: db}
}

const serverColumns = `id, serial_number, apk_serial_number, hostname, ip_address, status, notes, created_at, updated_at`

func (r *serverRepo) Create(ctx context.Context, s *model.Server) error {
	query := `
		INSERT INTO servers (id, serial_number, apk_serial_number, hostname, ip_address, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID, s.SerialNumber, s.APKSerialNumber, s.Hostname, s.IPAddress, s.Status, s.Notes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: серийный номер сервера уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания сервера: %w", err)
	}
	return nil
}

func (r *serverRepo) GetByID(ctx context.Context, id string) (*model.Server, error) {
	query := fmt.Sprintf(`SELECT %s FROM servers WHERE id = $1`, serverColumns)

	s := &model.Server{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.SerialNumber, &s.APKSerialNumber, &s.Hostname, &s.IPAddress,
		&s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сервера: %w", err)
	}
	return s, nil
}

// buildServerWhere строит условия WHERE по фильтру.
func buildServerWhere(filter ServerFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(serial_number ILIKE $%d OR apk_serial_number ILIKE $%d OR hostname ILIKE $%d)",
			argNum, argNum, argNum))
		args = append(args, "%"+*filter.Search+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *serverRepo) List(ctx context.Context, filter ServerFilter, limit, offset int) ([]*model.Server, error) {
	where, args := buildServerWhere(filter)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM servers
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, serverColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка серверов: %w", err)
	}
	defer rows.Close()

	var result []*model.Server
	for rows.Next() {
		s := &model.Server{}
		if err := rows.Scan(
			&s.ID, &s.SerialNumber, &s.APKSerialNumber, &s.Hostname, &s.IPAddress,
			&s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сервера: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *serverRepo) Count(ctx context.Context, filter ServerFilter) (int, error) {
	where, args := buildServerWhere(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM servers %s`, where)

	var count int
	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта серверов: %w", err)
	}
	return count, nil
}

func (r *serverRepo) Update(ctx context.Context, s *model.Server) error {
	query := `
		UPDATE servers
		SET serial_number = $2, apk_serial_number = $3, hostname = $4,
			ip_address = $5, notes = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID, s.SerialNumber, s.APKSerialNumber, s.Hostname, s.IPAddress, s.Notes,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: серийный номер сервера уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления сервера: %w", err)
	}
	return nil
}

func (r *serverRepo) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE servers SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса сервера: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
