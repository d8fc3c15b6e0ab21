package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// ApprovalRepository — интерфейс доступа к таблице approvals.
// Частичный уникальный индекс approvals_one_pending_key гарантирует не
// более одной PENDING-записи на пару (сервер, стадия); переходы
// PENDING → APPROVED/REJECTED выполняются compare-and-set запросом.
type ApprovalRepository interface {
	// Create создаёт заявку на верификацию (PENDING).
	Create(ctx context.Context, a *model.Approval) error
	// GetByID возвращает заявку по UUID.
	GetByID(ctx context.Context, id string) (*model.Approval, error)
	// GetLatest возвращает последнюю заявку пары (сервер, стадия).
	GetLatest(ctx context.Context, serverID, stageCode string) (*model.Approval, error)
	// GetPending возвращает PENDING-заявку пары (сервер, стадия).
	GetPending(ctx context.Context, serverID, stageCode string) (*model.Approval, error)
	// HasPending сообщает, есть ли у сервера нерассмотренные заявки.
	HasPending(ctx context.Context, serverID string) (bool, error)
	// ListByServer возвращает все заявки сервера, новые первыми.
	ListByServer(ctx context.Context, serverID string) ([]*model.Approval, error)
	// Queue возвращает очередь PENDING-заявок, старые первыми.
	Queue(ctx context.Context, stageCode *string, limit, offset int) ([]*model.ApprovalWithServer, error)
	// CountQueue возвращает длину очереди PENDING-заявок.
	CountQueue(ctx context.Context, stageCode *string) (int, error)
	// Resolve переводит заявку из PENDING в терминальный статус.
	// Возвращает ErrConflict, если заявка уже рассмотрена.
	Resolve(ctx context.Context, a *model.Approval) error
	// Stats возвращает сводку для панели инспектора.
	Stats(ctx context.Context) (*model.ApprovalStats, error)
}

// approvalRepo — реализация ApprovalRepository.
type approvalRepo struct {
	db DBTX
}

// NewApprovalRepository создаёт репозиторий заявок на верификацию.
func NewApprovalRepository(db DBTX) ApprovalRepository {
	return &approvalRepo{db: db}
}

const approvalColumns = `id, server_id, stage_code, status, submitted_by, submitted_at,
	reviewed_by, reviewed_at, comment, checklist_snapshot, created_at`

// scanApproval сканирует строку выборки approvalColumns.
func scanApproval(row pgx.Row) (*model.Approval, error) {
	a := &model.Approval{}
	err := row.Scan(
		&a.ID, &a.ServerID, &a.StageCode, &a.Status, &a.SubmittedBy, &a.SubmittedAt,
		&a.ReviewedBy, &a.ReviewedAt, &a.Comment, &a.ChecklistSnapshot, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *approvalRepo) Create(ctx context.Context, a *model.Approval) error {
	query := `
		INSERT INTO approvals (id, server_id, stage_code, status, submitted_by, checklist_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING submitted_at, created_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.ServerID, a.StageCode, a.Status, a.SubmittedBy, a.ChecklistSnapshot,
	).Scan(&a.SubmittedAt, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: по этой стадии уже есть активная заявка", ErrConflict)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *approvalRepo) GetByID(ctx context.Context, id string) (*model.Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE id = $1`, approvalColumns)

	a, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return a, nil
}

func (r *approvalRepo) GetLatest(ctx context.Context, serverID, stageCode string) (*model.Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM approvals
		WHERE server_id = $1 AND stage_code = $2
		ORDER BY submitted_at DESC
		LIMIT 1`, approvalColumns)

	a, err := scanApproval(r.db.QueryRow(ctx, query, serverID, stageCode))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения последней заявки: %w", err)
	}
	return a, nil
}

func (r *approvalRepo) GetPending(ctx context.Context, serverID, stageCode string) (*model.Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM approvals
		WHERE server_id = $1 AND stage_code = $2 AND status = 'PENDING'`, approvalColumns)

	a, err := scanApproval(r.db.QueryRow(ctx, query, serverID, stageCode))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения активной заявки: %w", err)
	}
	return a, nil
}

func (r *approvalRepo) HasPending(ctx context.Context, serverID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM approvals WHERE server_id = $1 AND status = 'PENDING')`,
		serverID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки активных заявок: %w", err)
	}
	return exists, nil
}

func (r *approvalRepo) ListByServer(ctx context.Context, serverID string) ([]*model.Approval, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM approvals
		WHERE server_id = $1
		ORDER BY submitted_at DESC`, approvalColumns)

	rows, err := r.db.Query(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок сервера: %w", err)
	}
	defer rows.Close()

	var result []*model.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *approvalRepo) Queue(ctx context.Context, stageCode *string, limit, offset int) ([]*model.ApprovalWithServer, error) {
	args := []any{}
	stageCond := ""
	if stageCode != nil {
		stageCond = "AND a.stage_code = $1"
		args = append(args, *stageCode)
	}
	argNum := len(args) + 1

	// Очередь FIFO: старые заявки первыми.
	query := fmt.Sprintf(`
		SELECT a.id, a.server_id, a.stage_code, a.status, a.submitted_by, a.submitted_at,
			a.reviewed_by, a.reviewed_at, a.comment, a.checklist_snapshot, a.created_at,
			s.id, s.serial_number, s.apk_serial_number, s.hostname, s.ip_address, s.status
		FROM approvals a
		JOIN servers s ON s.id = a.server_id
		WHERE a.status = 'PENDING' %s
		ORDER BY a.submitted_at ASC
		LIMIT $%d OFFSET $%d`, stageCond, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения очереди заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.ApprovalWithServer
	for rows.Next() {
		aw := &model.ApprovalWithServer{}
		if err := rows.Scan(
			&aw.ID, &aw.ServerID, &aw.StageCode, &aw.Status, &aw.SubmittedBy, &aw.SubmittedAt,
			&aw.ReviewedBy, &aw.ReviewedAt, &aw.Comment, &aw.ChecklistSnapshot, &aw.CreatedAt,
			&aw.Server.ID, &aw.Server.SerialNumber, &aw.Server.APKSerialNumber,
			&aw.Server.Hostname, &aw.Server.IPAddress, &aw.Server.Status,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, aw)
	}
	return result, rows.Err()
}

func (r *approvalRepo) CountQueue(ctx context.Context, stageCode *string) (int, error) {
	args := []any{}
	stageCond := ""
	if stageCode != nil {
		stageCond = "AND stage_code = $1"
		args = append(args, *stageCode)
	}

	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM approvals WHERE status = 'PENDING' %s`, stageCond)

	var count int
	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта очереди заявок: %w", err)
	}
	return count, nil
}

func (r *approvalRepo) Resolve(ctx context.Context, a *model.Approval) error {
	// Compare-and-set: заявка меняется только из PENDING. Конкурирующее
	// решение по той же заявке не затрёт первое, а получит ErrConflict.
	query := `
		UPDATE approvals
		SET status = $2, reviewed_by = $3, reviewed_at = $4, comment = $5
		WHERE id = $1 AND status = 'PENDING'
		RETURNING reviewed_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.Status, a.ReviewedBy, a.ReviewedAt, a.Comment,
	).Scan(&a.ReviewedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Либо заявки нет, либо она уже рассмотрена.
			var exists bool
			checkErr := r.db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM approvals WHERE id = $1)`, a.ID).Scan(&exists)
			if checkErr != nil {
				return fmt.Errorf("ошибка проверки заявки: %w", checkErr)
			}
			if !exists {
				return ErrNotFound
			}
			return fmt.Errorf("%w: заявка уже рассмотрена", ErrConflict)
		}
		return fmt.Errorf("ошибка рассмотрения заявки: %w", err)
	}
	return nil
}

func (r *approvalRepo) Stats(ctx context.Context) (*model.ApprovalStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'APPROVED' AND reviewed_at >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE status = 'REJECTED' AND reviewed_at >= date_trunc('day', now())),
			COALESCE(AVG(EXTRACT(EPOCH FROM (reviewed_at - submitted_at)) / 60)
				FILTER (WHERE reviewed_at IS NOT NULL AND reviewed_at >= now() - interval '7 days'), 0)
		FROM approvals`

	st := &model.ApprovalStats{}
	var avgMinutes float64
	err := r.db.QueryRow(ctx, query).Scan(
		&st.Pending, &st.ApprovedToday, &st.RejectedToday, &avgMinutes,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сводки заявок: %w", err)
	}
	st.AvgReviewMinutes = int(avgMinutes)
	return st, nil
}
