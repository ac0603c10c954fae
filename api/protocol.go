package api

const postTaskMaxSize = 100 * 1024 // 100 KiB

const headerIdempotencyKey = "Idempotency-Key"

const bannerText = "Task API is running. Use /api/tasks to interact."

const (
	msgRequired        = "Title and priority are required"
	msgInvalidPriority = "Invalid priority value"
	msgInvalidBody     = "Invalid request body"
	msgDuplicate       = "Duplicate request"
	msgSaveFailed      = "Failed to save task"
	msgLoadFailed      = "Failed to load tasks"
)

// POST /api/tasks request body
type createTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"required,priority"`
}

// error response body
type errorResponse struct {
	Error string `json:"error"`
}
