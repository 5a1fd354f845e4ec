package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/avdeev/taskchat/pkg/domain"
)

// postgresTaskRepository persists tasks in a single table with attachments
// as a JSONB document. Rows come back in creation order so title-search
// first-match behavior is the same as the in-memory store's.
type postgresTaskRepository struct {
	db              *sql.DB
	maxPayloadBytes int
	now             func() time.Time
}

func NewPostgresTaskRepository(db *sql.DB, maxPayloadBytes int) *postgresTaskRepository {
	return &postgresTaskRepository{
		db:              db,
		maxPayloadBytes: maxPayloadBytes,
		now:             time.Now,
	}
}

func (r *postgresTaskRepository) CreateTask(ctx context.Context, fields domain.TaskFields, attachments []domain.Attachment) (domain.Task, error) {
	now := r.now()
	task := domain.Task{
		ID:          uuid.NewString(),
		Title:       fields.Title,
		Description: fields.Description,
		Priority:    fields.Priority,
		Status:      fields.Status,
		DueDate:     fields.DueDate,
		Attachments: copyAttachments(attachments),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	attachmentsJSON, err := r.encodeAttachments(task.Attachments)
	if err != nil {
		return domain.Task{}, err
	}

	const query = `
		INSERT INTO tasks (id, title, description, priority, status, due_date, attachments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Priority, task.Status,
		task.DueDate, attachmentsJSON, task.CreatedAt, task.UpdatedAt,
	); err != nil {
		return domain.Task{}, fmt.Errorf("inserting task: %w", translatePgError(err))
	}

	return task, nil
}

func (r *postgresTaskRepository) GetAllTasks(ctx context.Context) ([]domain.Task, error) {
	const query = `
		SELECT id, title, description, priority, status, due_date, attachments, created_at, updated_at
		FROM tasks
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func (r *postgresTaskRepository) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	const selectQuery = `
		SELECT id, title, description, priority, status, due_date, attachments, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, selectQuery, id)
	current, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	updated := applyPatch(current, patch)
	if r.maxPayloadBytes > 0 && updated.AttachmentsSize() > r.maxPayloadBytes {
		return nil, domain.ErrPayloadTooLarge
	}
	updated.UpdatedAt = r.now()

	attachmentsJSON, err := r.encodeAttachments(updated.Attachments)
	if err != nil {
		return nil, err
	}

	const updateQuery = `
		UPDATE tasks
		SET title = $2, description = $3, priority = $4, status = $5, due_date = $6, attachments = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, updateQuery,
		updated.ID, updated.Title, updated.Description, updated.Priority,
		updated.Status, updated.DueDate, attachmentsJSON, updated.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", translatePgError(err))
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		// Deleted between select and update.
		return nil, nil
	}

	return &updated, nil
}

func (r *postgresTaskRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresTaskRepository) DeleteAllTasks(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("deleting tasks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted tasks: %w", err)
	}
	return int(affected), nil
}

func (r *postgresTaskRepository) encodeAttachments(attachments []domain.Attachment) ([]byte, error) {
	var size int
	for _, a := range attachments {
		size += len(a.Data)
	}
	if r.maxPayloadBytes > 0 && size > r.maxPayloadBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	data, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("encoding attachments: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task            domain.Task
		dueDate         sql.NullTime
		attachmentsJSON []byte
	)

	if err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Priority, &task.Status,
		&dueDate, &attachmentsJSON, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, err
		}
		return domain.Task{}, fmt.Errorf("scanning task: %w", err)
	}

	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}

	task.Attachments = []domain.Attachment{}
	if len(attachmentsJSON) > 0 {
		if err := json.Unmarshal(attachmentsJSON, &task.Attachments); err != nil {
			return domain.Task{}, fmt.Errorf("decoding attachments: %w", err)
		}
	}
	if task.Attachments == nil {
		task.Attachments = []domain.Attachment{}
	}
	return task, nil
}

// translatePgError maps the backend's own size rejections onto the
// payload-too-large sentinel the persistence guard reacts to.
func translatePgError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case "54000", "53100", "22001":
			return fmt.Errorf("%w: %s", domain.ErrPayloadTooLarge, pgErr.Field('M'))
		}
	}
	return err
}
