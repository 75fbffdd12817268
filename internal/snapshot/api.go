package snapshot

// Error codes carried in ErrorBody.Code.
const (
	CodeNotFound  = "not_found"
	CodeDuplicate = "duplicate"
	CodeInvalid   = "invalid"
	CodePersist   = "persist"
	CodeInternal  = "internal"
)

// ErrorBody is the JSON body of every non-2xx API response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// TaskInput is the body of POST /api/tasks.
type TaskInput struct {
	Name   string         `json:"name"`
	Effect map[string]int `json:"effect"`
	Type   string         `json:"type"`
	Label  string         `json:"label"`
}

// TaskPatch is the body of PATCH /api/tasks/{name}. Omitted or null fields are
// unchanged. An empty effect object clears the effect.
type TaskPatch struct {
	Name   *string        `json:"name,omitempty"`
	Effect map[string]int `json:"effect"`
	Type   *string        `json:"type,omitempty"`
	Label  *string        `json:"label,omitempty"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
	Dirty   bool    `json:"dirty"`
}
