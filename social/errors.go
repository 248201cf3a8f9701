package social

import (
	"errors"
	"fmt"
)

// Kind classifies a relationship error for callers.
type Kind int

const (
	// KindValidation: the input was rejected before touching the store.
	KindValidation Kind = iota + 1
	// KindNotFound: the referenced request, block, friendship or member is absent.
	KindNotFound
	// KindConflict: current or concurrently changed state forbids the transition.
	// Never retried automatically.
	KindConflict
	// KindTransient: lock timeout or connectivity; safe to retry with backoff.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "error"
	}
}

// Error is the error type returned by every relationship operation.
// Code names the invariant or rule that failed.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Code, so wrapped copies of a
// sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: sentinel.Msg, Err: cause}
}

var (
	ErrInvalidMember  = &Error{Kind: KindValidation, Code: "INVALID_MEMBER_ID", Msg: "member id must be positive"}
	ErrInvalidRequest = &Error{Kind: KindValidation, Code: "INVALID_REQUEST_ID", Msg: "request id must be positive"}
	ErrSelfRequest    = &Error{Kind: KindValidation, Code: "SELF_REQUEST", Msg: "cannot send a friend request to yourself"}
	ErrSelfBlock      = &Error{Kind: KindValidation, Code: "SELF_BLOCK", Msg: "cannot block yourself"}
	ErrEmptyQuery     = &Error{Kind: KindValidation, Code: "EMPTY_QUERY", Msg: "search text is empty"}

	ErrMemberNotFound  = &Error{Kind: KindNotFound, Code: "MEMBER_NOT_FOUND", Msg: "member not found"}
	ErrRequestNotFound = &Error{Kind: KindNotFound, Code: "REQUEST_NOT_FOUND", Msg: "friend request not found"}
	ErrBlockNotFound   = &Error{Kind: KindNotFound, Code: "BLOCK_NOT_FOUND", Msg: "member is not blocked"}
	ErrNotFriends      = &Error{Kind: KindNotFound, Code: "NOT_FRIENDS", Msg: "members are not friends"}

	ErrBlocked          = &Error{Kind: KindConflict, Code: "BLOCKED", Msg: "a block exists between the members"}
	ErrAlreadyFriends   = &Error{Kind: KindConflict, Code: "ALREADY_FRIENDS", Msg: "members are already friends"}
	ErrDuplicateRequest = &Error{Kind: KindConflict, Code: "DUPLICATE_REQUEST", Msg: "a pending friend request already exists between the members"}
	ErrRequestResolved  = &Error{Kind: KindConflict, Code: "REQUEST_RESOLVED", Msg: "friend request is no longer pending"}
	ErrConflict         = &Error{Kind: KindConflict, Code: "CONFLICT", Msg: "concurrent relationship change"}

	ErrTransient = &Error{Kind: KindTransient, Code: "TRANSIENT", Msg: "relationship store temporarily unavailable"}
)

// KindOf reports the Kind of err, or 0 for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
