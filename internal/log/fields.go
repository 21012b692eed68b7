package log

// Attribute keys shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldGoalID      = "goal_id"
	FieldGoalTitle   = "goal_title"
	FieldAmountCents = "amount_cents"
	FieldGoalCount   = "goal_count"
	FieldMilestones  = "milestones"
	FieldStorageKey  = "storage_key"
	FieldBackend     = "backend"
	FieldEventKind   = "event_kind"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentGoals    = "goals"
	ComponentAMQP     = "amqp"
	ComponentEvents   = "events"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
)

// Goal operations, as they appear under FieldOperation.
const (
	OpList       = "list"
	OpRead       = "read"
	OpSummary    = "summary"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpDeposit    = "deposit"
	OpWithdraw   = "withdraw"
	OpLock       = "toggle_lock"
	OpClearError = "clear_error"
	OpLoad       = "load"
	OpPublish    = "publish"
	OpShutdown   = "shutdown"
)

// LogFields collects key/value pairs in the order they were added.
type LogFields []any

func NewFields() LogFields {
	return make(LogFields, 0, 8)
}

// With appends one key/value pair.
func (f LogFields) With(key string, value any) LogFields {
	return append(f, key, value)
}

func (f LogFields) WithComponent(component string) LogFields {
	return f.With(FieldComponent, component)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	return f.With(FieldRequestID, requestID)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	return f.With(FieldClientIP, ip)
}

// WithError adds err's message; a nil err adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	return f.With(FieldError, err.Error())
}

func (f LogFields) WithOperation(op string) LogFields {
	return f.With(FieldOperation, op)
}

// WithGoal adds the goal id, and the title when known.
func (f LogFields) WithGoal(id, title string) LogFields {
	f = f.With(FieldGoalID, id)
	if title != "" {
		f = f.With(FieldGoalTitle, title)
	}
	return f
}

func (f LogFields) WithAmount(cents int64) LogFields {
	return f.With(FieldAmountCents, cents)
}

// ToSlice returns the pairs for slog's variadic arguments.
func (f LogFields) ToSlice() []any {
	return f
}
