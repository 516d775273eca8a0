package domain

import "time"

// Status of a task. Values are the wire strings; "in progress" keeps its space.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in progress"
	StatusHold       Status = "hold"
	StatusCheck      Status = "check"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the five defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusHold, StatusCheck, StatusDone:
		return true
	}
	return false
}

// Domain entity: бизнес-объект (истина).
// Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      Status
	OwnerID     int64
	CreatedAt   time.Time
}
