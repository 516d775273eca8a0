package repo

import (
	"context"

	dom "tasktracker/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilter narrows a task listing. Nil pointers mean "no constraint".
type ListFilter struct {
	Status  *dom.Status
	OwnerID *int64
	Skip    int
	Limit   int
}

// TaskRepo provides task persistence. Methods that take ownerScope restrict
// visibility to that owner inside the WHERE clause; nil ownerScope means
// unrestricted. Rows outside the scope are never fetched.
type TaskRepo interface {
	Create(ctx context.Context, t dom.Task) (dom.Task, error)
	GetByID(ctx context.Context, id int64, ownerScope *int64) (dom.Task, error)
	List(ctx context.Context, f ListFilter) ([]dom.Task, error)
	Update(ctx context.Context, id int64, ownerScope *int64, patch dom.Task) (dom.Task, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type PGTaskRepo struct {
	db *pgxpool.Pool
}

func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

func (r *PGTaskRepo) Create(ctx context.Context, t dom.Task) (dom.Task, error) {
	query := `
		INSERT INTO tasks (title, description, status, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, description, status, owner_id, created_at`
	var out dom.Task
	err := r.db.QueryRow(ctx, query, t.Title, t.Description, t.Status, t.OwnerID).Scan(
		&out.ID, &out.Title, &out.Description, &out.Status, &out.OwnerID, &out.CreatedAt,
	)
	return out, err
}

func (r *PGTaskRepo) GetByID(ctx context.Context, id int64, ownerScope *int64) (dom.Task, error) {
	query := `
		SELECT id, title, description, status, owner_id, created_at
		FROM tasks WHERE id = $1 AND ($2::bigint IS NULL OR owner_id = $2)`
	var t dom.Task
	err := r.db.QueryRow(ctx, query, id, ownerScope).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt,
	)
	return t, err
}

func (r *PGTaskRepo) List(ctx context.Context, f ListFilter) ([]dom.Task, error) {
	query := `
		SELECT id, title, description, status, owner_id, created_at
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1) AND ($2::bigint IS NULL OR owner_id = $2)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4`
	rows, err := r.db.Query(ctx, query, f.Status, f.OwnerID, f.Skip, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.Task
	for rows.Next() {
		var t dom.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTaskRepo) Update(ctx context.Context, id int64, ownerScope *int64, patch dom.Task) (dom.Task, error) {
	query := `
		UPDATE tasks SET title = $3, description = $4, status = $5
		WHERE id = $1 AND ($2::bigint IS NULL OR owner_id = $2)
		RETURNING id, title, description, status, owner_id, created_at`
	var t dom.Task
	err := r.db.QueryRow(ctx, query, id, ownerScope, patch.Title, patch.Description, patch.Status).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.CreatedAt,
	)
	return t, err
}

// Delete removes the task and reports whether a row existed.
func (r *PGTaskRepo) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
