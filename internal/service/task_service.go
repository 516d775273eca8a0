package service

import (
	"context"
	"errors"
	"strings"

	dom "tasktracker/internal/domain"
	"tasktracker/internal/repo"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrForbidden     = errors.New("admin role required")
	ErrInvalidStatus = errors.New("status must be one of: new, in progress, hold, check, done")
)

const defaultListLimit = 100

// TaskFilter narrows List. OwnerID is honored for admins only; for regular
// users the service pins it to the caller.
type TaskFilter struct {
	Status  *dom.Status
	OwnerID *int64
	Skip    int
	Limit   int
}

// TaskService decides, per principal, what may be seen or changed. Ownership
// constraints go into the repo query itself, so a foreign row is never
// fetched on behalf of a non-admin, not even transiently.
type TaskService struct {
	repo repo.TaskRepo
}

func NewTaskService(r repo.TaskRepo) *TaskService {
	return &TaskService{repo: r}
}

// scope returns the owner constraint for the principal: admins see
// everything, everyone else only their own rows.
func scope(p dom.Principal) *int64 {
	if p.IsAdmin() {
		return nil
	}
	id := p.ID
	return &id
}

// Create inserts a task owned by the caller. Ownership is taken from the
// principal, never from the request. Empty status defaults to "new".
func (s *TaskService) Create(ctx context.Context, p dom.Principal, title, desc string, status dom.Status) (dom.Task, error) {
	title = strings.TrimSpace(title)
	desc = strings.TrimSpace(desc)

	if status == "" {
		status = dom.StatusNew
	}
	if !status.Valid() {
		return dom.Task{}, ErrInvalidStatus
	}

	return s.repo.Create(ctx, dom.Task{
		Title:       title,
		Description: desc,
		Status:      status,
		OwnerID:     p.ID,
	})
}

// List returns tasks visible to the principal. A non-admin's owner filter is
// overridden with their own id; admins may filter by any owner or none.
func (s *TaskService) List(ctx context.Context, p dom.Principal, f TaskFilter) ([]dom.Task, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	owner := f.OwnerID
	if !p.IsAdmin() {
		owner = scope(p)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	skip := f.Skip
	if skip < 0 {
		skip = 0
	}
	return s.repo.List(ctx, repo.ListFilter{
		Status:  f.Status,
		OwnerID: owner,
		Skip:    skip,
		Limit:   limit,
	})
}

// GetByID returns the task if the principal may see it. A missing task and a
// foreign task produce the same ErrNotFound so callers cannot probe for
// existence.
func (s *TaskService) GetByID(ctx context.Context, p dom.Principal, id int64) (dom.Task, error) {
	t, err := s.repo.GetByID(ctx, id, scope(p))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	return t, nil
}

// Update changes only the supplied fields, under the same visibility rule as
// GetByID.
func (s *TaskService) Update(ctx context.Context, p dom.Principal, id int64, title, desc *string, status *dom.Status) (dom.Task, error) {
	if status != nil && !status.Valid() {
		return dom.Task{}, ErrInvalidStatus
	}
	existing, err := s.repo.GetByID(ctx, id, scope(p))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	patch := existing
	if title != nil {
		patch.Title = strings.TrimSpace(*title)
	}
	if desc != nil {
		patch.Description = strings.TrimSpace(*desc)
	}
	if status != nil {
		patch.Status = *status
	}
	t, err := s.repo.Update(ctx, id, scope(p), patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	return t, nil
}

// Delete removes a task. Admin only, ownership notwithstanding: a regular
// user may not delete even their own task.
func (s *TaskService) Delete(ctx context.Context, p dom.Principal, id int64) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
