package core

// AuthLevel is the access requirement of an endpoint.
type AuthLevel int

const (
	AuthPublic AuthLevel = iota
	AuthUser
	AuthAdmin
)

func (l AuthLevel) String() string {
	switch l {
	case AuthPublic:
		return "public"
	case AuthUser:
		return "user"
	case AuthAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Endpoint is a framework-agnostic route template. Adapters bind a handler
// to each OperationID.
type Endpoint struct {
	Path     string
	Method   string
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	Auth        AuthLevel
}

// ErrorResponse is the error envelope of every non-2xx API response.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}
