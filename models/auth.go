package models

// ============================================================================
// AUTHENTICATION REQUESTS
// ============================================================================

const (
	ActionSignup = "signup"
	ActionSignin = "signin"
)

// AuthRequest is the body accepted by POST /auth.
type AuthRequest struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials are validated before any provider call.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// ============================================================================
// AUTHENTICATION RESPONSES
// ============================================================================

type SignupResult struct {
	User              UserRef `json:"user"`
	NeedsConfirmation bool    `json:"needsConfirmation"`
}

type SignupResponse struct {
	Success           bool    `json:"success"`
	Message           string  `json:"message"`
	NeedsConfirmation bool    `json:"needsConfirmation"`
	User              UserRef `json:"user"`
}

type SigninResponse struct {
	Success bool    `json:"success"`
	Session Session `json:"session"`
	User    User    `json:"user"`
}
