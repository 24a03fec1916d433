package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	RequestID  key = "request_id"
	SessionKey key = "session_key"
	Channel    key = "channel"
	Backend    key = "backend"
)
