package dto

import "time"

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"max=1000"`
	Status      string `json:"status"` // optional, defaults to "new"
}

type UpdateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=120"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Status      *string `json:"status"` // nil = не менять
}

// ListTasksQuery binds the query string of GET /tasks.
type ListTasksQuery struct {
	Status  string `form:"status"`
	OwnerID *int64 `form:"owner_id" binding:"omitempty,min=1"`
	Skip    int    `form:"skip" binding:"omitempty,min=0"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListTasksResponse struct {
	Items []TaskResponse `json:"items"`
}
