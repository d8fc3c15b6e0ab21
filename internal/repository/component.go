package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// ComponentSearchFilter — фильтры поиска комплектующих по всему парку.
// Хотя бы один фильтр должен быть задан (контролирует сервисный слой).
type ComponentSearchFilter struct {
	// Query — подстрока для поиска по серийным номерам, названию,
	// модели и партномеру
	Query *string
	// Type — фильтр по типу комплектующего
	Type *string
	// Status — фильтр по статусу
	Status *string
	// ServerID — фильтр по серверу-владельцу
	ServerID *string
}

// ComponentRepository — интерфейс доступа к таблицам components и
// component_serials. Реестр component_serials ведётся в той же
// транзакции, что и мутации components: он страхует инвариант
// уникальности серийных номеров на уровне БД.
type ComponentRepository interface {
	// Create создаёт комплектующее.
	Create(ctx context.Context, c *model.Component) error
	// GetByID возвращает комплектующее по UUID.
	GetByID(ctx context.Context, id string) (*model.Component, error)
	// GetByIDForUpdate возвращает комплектующее с блокировкой строки.
	GetByIDForUpdate(ctx context.Context, id string) (*model.Component, error)
	// ListByServer возвращает комплектующие сервера, опционально по типу.
	ListByServer(ctx context.Context, serverID string, componentType *string) ([]*model.Component, error)
	// CountByServer возвращает количество комплектующих сервера.
	CountByServer(ctx context.Context, serverID string) (int, error)
	// Update обновляет изменяемые атрибуты комплектующего.
	Update(ctx context.Context, c *model.Component) error
	// UpdateSerials корректирует серийные номера комплектующего.
	UpdateSerials(ctx context.Context, c *model.Component) error
	// MarkReplaced помечает комплектующее заменённым.
	MarkReplaced(ctx context.Context, c *model.Component) error
	// Delete удаляет комплектующее.
	Delete(ctx context.Context, id string) error
	// Search ищет комплектующие во всём парке по фильтру.
	Search(ctx context.Context, filter ComponentSearchFilter, limit, offset int) ([]*model.ComponentWithServer, error)
	// FindActiveSerialConflict ищет активное (не REPLACED) комплектующее,
	// у которого любой из серийных номеров совпадает с одним из serials.
	// Проверка симметрична по колонкам serial_number и serial_number_yadro.
	// excludeID исключает само комплектующее при обновлении.
	FindActiveSerialConflict(ctx context.Context, serials []string, excludeID *string) (*model.ComponentWithServer, error)
	// ClaimSerials занимает серийные номера в реестре component_serials.
	// Возвращает ErrConflict, если любой из номеров уже занят.
	ClaimSerials(ctx context.Context, componentID string, serials []string) error
	// ReleaseSerials освобождает все серийные номера комплектующего.
	ReleaseSerials(ctx context.Context, componentID string) error
}

// componentRepo — реализация ComponentRepository.
type componentRepo struct {
	db DBTX
}

// NewComponentRepository создаёт репозиторий комплектующих.
func NewComponentRepository(db DBTX) ComponentRepository {
	return &componentRepo{db: db}
}

const componentColumns = `id, server_id, component_type, name, manufacturer, model, part_number,
	slot, capacity, speed, serial_number, serial_number_yadro, status, metadata,
	data_source, installed_by, notes, replaced_at, replaced_by, replacement_reason,
	replaces_component_id, created_at, updated_at`

// scanComponent сканирует строку выборки componentColumns.
func scanComponent(row pgx.Row) (*model.Component, error) {
	c := &model.Component{}
	err := row.Scan(
		&c.ID, &c.ServerID, &c.ComponentType, &c.Name, &c.Manufacturer, &c.Model,
		&c.PartNumber, &c.Slot, &c.Capacity, &c.Speed, &c.SerialNumber,
		&c.SerialNumberYadro, &c.Status, &c.Metadata, &c.DataSource, &c.InstalledBy,
		&c.Notes, &c.ReplacedAt, &c.ReplacedBy, &c.ReplacementReason,
		&c.ReplacesComponentID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *componentRepo) Create(ctx context.Context, c *model.Component) error {
	query := `
		INSERT INTO components (id, server_id, component_type, name, manufacturer, model,
			part_number, slot, capacity, speed, serial_number, serial_number_yadro,
			status, metadata, data_source, installed_by, notes, replaces_component_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.ServerID, c.ComponentType, c.Name, c.Manufacturer, c.Model,
		c.PartNumber, c.Slot, c.Capacity, c.Speed, c.SerialNumber, c.SerialNumberYadro,
		c.Status, c.Metadata, c.DataSource, c.InstalledBy, c.Notes, c.ReplacesComponentID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: серийный номер уже занят", ErrConflict)
		}
		return fmt.Errorf("ошибка создания комплектующего: %w", err)
	}
	return nil
}

func (r *componentRepo) GetByID(ctx context.Context, id string) (*model.Component, error) {
	query := fmt.Sprintf(`SELECT %s FROM components WHERE id = $1`, componentColumns)

	c, err := scanComponent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения комплектующего: %w", err)
	}
	return c, nil
}

func (r *componentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Component, error) {
	query := fmt.Sprintf(`SELECT %s FROM components WHERE id = $1 FOR UPDATE`, componentColumns)

	c, err := scanComponent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения комплектующего: %w", err)
	}
	return c, nil
}

func (r *componentRepo) ListByServer(ctx context.Context, serverID string, componentType *string) ([]*model.Component, error) {
	var conditions []string
	args := []any{serverID}
	conditions = append(conditions, "server_id = $1")

	if componentType != nil {
		conditions = append(conditions, fmt.Sprintf("component_type = $%d", len(args)+1))
		args = append(args, *componentType)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM components
		WHERE %s
		ORDER BY component_type, slot NULLS LAST, created_at`,
		componentColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения комплектующих сервера: %w", err)
	}
	defer rows.Close()

	var result []*model.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования комплектующего: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *componentRepo) CountByServer(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM components WHERE server_id = $1`, serverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта комплектующих: %w", err)
	}
	return count, nil
}

func (r *componentRepo) Update(ctx context.Context, c *model.Component) error {
	query := `
		UPDATE components
		SET name = $2, manufacturer = $3, model = $4, part_number = $5, slot = $6,
			capacity = $7, speed = $8, status = $9, metadata = $10, notes = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Manufacturer, c.Model, c.PartNumber, c.Slot,
		c.Capacity, c.Speed, c.Status, c.Metadata, c.Notes,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления комплектующего: %w", err)
	}
	return nil
}

func (r *componentRepo) UpdateSerials(ctx context.Context, c *model.Component) error {
	query := `
		UPDATE components
		SET serial_number = $2, serial_number_yadro = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, c.ID, c.SerialNumber, c.SerialNumberYadro).Scan(&c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: серийный номер уже занят", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления серийных номеров: %w", err)
	}
	return nil
}

func (r *componentRepo) MarkReplaced(ctx context.Context, c *model.Component) error {
	query := `
		UPDATE components
		SET status = $2, metadata = $3, replaced_at = $4, replaced_by = $5,
			replacement_reason = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, model.ComponentStatusReplaced, c.Metadata,
		c.ReplacedAt, c.ReplacedBy, c.ReplacementReason,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка пометки комплектующего заменённым: %w", err)
	}
	c.Status = model.ComponentStatusReplaced
	return nil
}

func (r *componentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM components WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления комплектующего: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// componentWithServerColumns — колонки выборки комплектующего вместе с сервером.
const componentWithServerColumns = `c.id, c.server_id, c.component_type, c.name, c.manufacturer,
	c.model, c.part_number, c.slot, c.capacity, c.speed, c.serial_number,
	c.serial_number_yadro, c.status, c.metadata, c.data_source, c.installed_by,
	c.notes, c.replaced_at, c.replaced_by, c.replacement_reason,
	c.replaces_component_id, c.created_at, c.updated_at,
	s.id, s.serial_number, s.apk_serial_number, s.hostname, s.ip_address, s.status`

// scanComponentWithServer сканирует строку выборки componentWithServerColumns.
func scanComponentWithServer(row pgx.Row) (*model.ComponentWithServer, error) {
	cs := &model.ComponentWithServer{}
	err := row.Scan(
		&cs.ID, &cs.ServerID, &cs.ComponentType, &cs.Name, &cs.Manufacturer, &cs.Model,
		&cs.PartNumber, &cs.Slot, &cs.Capacity, &cs.Speed, &cs.SerialNumber,
		&cs.SerialNumberYadro, &cs.Status, &cs.Metadata, &cs.DataSource, &cs.InstalledBy,
		&cs.Notes, &cs.ReplacedAt, &cs.ReplacedBy, &cs.ReplacementReason,
		&cs.ReplacesComponentID, &cs.CreatedAt, &cs.UpdatedAt,
		&cs.Server.ID, &cs.Server.SerialNumber, &cs.Server.APKSerialNumber,
		&cs.Server.Hostname, &cs.Server.IPAddress, &cs.Server.Status,
	)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// buildComponentSearchWhere строит условия WHERE по фильтру поиска.
func buildComponentSearchWhere(filter ComponentSearchFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(c.serial_number ILIKE $%d OR c.serial_number_yadro ILIKE $%d OR c.name ILIKE $%d OR c.manufacturer ILIKE $%d OR c.model ILIKE $%d OR c.part_number ILIKE $%d)",
			argNum, argNum, argNum, argNum, argNum, argNum))
		args = append(args, "%"+*filter.Query+"%")
		argNum++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("c.component_type = $%d", argNum))
		args = append(args, *filter.Type)
		argNum++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.ServerID != nil {
		conditions = append(conditions, fmt.Sprintf("c.server_id = $%d", argNum))
		args = append(args, *filter.ServerID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *componentRepo) Search(ctx context.Context, filter ComponentSearchFilter, limit, offset int) ([]*model.ComponentWithServer, error) {
	where, args := buildComponentSearchWhere(filter)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM components c
		JOIN servers s ON s.id = c.server_id
		%s
		ORDER BY c.created_at DESC
		LIMIT $%d OFFSET $%d`, componentWithServerColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска комплектующих: %w", err)
	}
	defer rows.Close()

	var result []*model.ComponentWithServer
	for rows.Next() {
		cs, err := scanComponentWithServer(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования комплектующего: %w", err)
		}
		result = append(result, cs)
	}
	return result, rows.Err()
}

func (r *componentRepo) FindActiveSerialConflict(ctx context.Context, serials []string, excludeID *string) (*model.ComponentWithServer, error) {
	if len(serials) == 0 {
		return nil, ErrNotFound
	}

	// Симметричная проверка: любой из переданных номеров против обеих
	// колонок. Заменённые комплектующие из инварианта исключены.
	args := []any{serials}
	exclude := ""
	if excludeID != nil {
		exclude = "AND c.id <> $2"
		args = append(args, *excludeID)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM components c
		JOIN servers s ON s.id = c.server_id
		WHERE (c.serial_number = ANY($1) OR c.serial_number_yadro = ANY($1))
			AND c.status <> 'REPLACED'
			%s
		LIMIT 1`, componentWithServerColumns, exclude)

	cs, err := scanComponentWithServer(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка проверки серийных номеров: %w", err)
	}
	return cs, nil
}

func (r *componentRepo) ClaimSerials(ctx context.Context, componentID string, serials []string) error {
	for _, serial := range serials {
		_, err := r.db.Exec(ctx,
			`INSERT INTO component_serials (serial, component_id) VALUES ($1, $2)`,
			serial, componentID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: серийный номер %s уже занят", ErrConflict, serial)
			}
			return fmt.Errorf("ошибка регистрации серийного номера: %w", err)
		}
	}
	return nil
}

func (r *componentRepo) ReleaseSerials(ctx context.Context, componentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM component_serials WHERE component_id = $1`, componentID)
	if err != nil {
		return fmt.Errorf("ошибка освобождения серийных номеров: %w", err)
	}
	return nil
}
