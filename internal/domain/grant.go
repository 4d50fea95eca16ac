package domain

import "time"

// Action is the storage operation a grant authorizes.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// ObjectLocator identifies exactly one stored object.
type ObjectLocator struct {
	Bucket string
	Key    string
}

// AccessGrantRequest asks for a time-limited URL performing Action on the
// object addressed by ResourceLocator.
type AccessGrantRequest struct {
	ResourceLocator string
	Action          Action
	TTL             time.Duration
}

// AccessGrant is a bearer URL valid until ExpiresAt. It is never stored.
type AccessGrant struct {
	URL       string
	ExpiresAt time.Time
}
