package auth

import (
	"strings"
	"time"
)

// Purpose tags what a token may be used for.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeReset   Purpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeReset:
		return true
	default:
		return false
	}
}

// Identity is the verified content of a bearer token.
type Identity struct {
	Subject   string
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Key returns the rate limit identity key for this subject.
func (id *Identity) Key() string {
	return UserPrefix + id.Subject
}

// Identity key prefixes.
const (
	UserPrefix = "user:"
	IPPrefix   = "ip:"
)

// Key builds the rate limit identity key: "user:"+subject when ok, else "ip:"+addr.
func Key(subject string, ok bool, addr string) string {
	if ok && subject != "" {
		return UserPrefix + subject
	}
	return IPPrefix + addr
}

// KeyKind returns "user" or "ip" for an identity key, or "unknown".
func KeyKind(key string) string {
	switch {
	case strings.HasPrefix(key, UserPrefix):
		return "user"
	case strings.HasPrefix(key, IPPrefix):
		return "ip"
	default:
		return "unknown"
	}
}
