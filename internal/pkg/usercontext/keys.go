package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserContext   = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyFromProtected = "from_protected"
	KeyRequestID     = "request_id"
)
