package domain

import "errors"

// Kind classifies a core error for callers that need to branch on it (§7).
type Kind string

const (
	KindAuthRequired   Kind = "auth_required"
	KindBusy           Kind = "busy"
	KindRateLimited    Kind = "rate_limited"
	KindTransient      Kind = "transient"
	KindInvalidRequest Kind = "invalid_request"
	KindConflict       Kind = "conflict"
	KindDegraded       Kind = "degraded"
	KindNotFound       Kind = "not_found"
)

// CoreError wraps an underlying cause with a machine-readable Kind.
type CoreError struct {
	Kind  Kind
	Cause error
}

func (e *CoreError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *CoreError) Unwrap() error { return e.Cause }

// NewError builds a CoreError from a Kind and an optional cause.
func NewError(kind Kind, cause error) *CoreError {
	return &CoreError{Kind: kind, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to "" if err isn't a CoreError.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrCredentialRevoked    = errors.New("credential revoked, reconnect required")
	ErrReservationExists    = errors.New("notification already reserved")
	ErrDuplicateCredential  = errors.New("an active credential already exists for this user and provider")
	ErrCyclicDependency     = errors.New("dependency graph would become cyclic")
	ErrSelfDependency       = errors.New("a task cannot block itself")
	ErrInvalidTimeRange     = errors.New("end must not be before start")
	ErrPipelineBusy         = errors.New("a pipeline run is already in flight for this user and source")
	ErrInvalidPlanDate      = errors.New("date must be a valid YYYY-MM-DD calendar date")

	ErrInvalidStatusTransitionForPlan = errors.New("invalid plan status transition")
)
