package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups failures by how callers are expected to react to them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

// Business codes. These are stable and safe to show to clients.
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeUnknownEventType = "unknown_event_type"

	CodeActorNotFound     = "actor_not_found"
	CodeItemNotFound      = "item_not_found"
	CodeSkillNotFound     = "skill_not_found"
	CodeBadgeNotFound     = "badge_not_found"
	CodeInventoryNotFound = "inventory_not_found"

	CodeInsufficientCoins  = "insufficient_coins"
	CodeAlreadyOwned       = "already_owned"
	CodeAlreadyClaimed     = "already_claimed"
	CodeOutOfStock         = "out_of_stock"
	CodePrerequisiteNotMet = "prerequisite_not_met"
	CodeDuplicateEvent     = "duplicate_event"
	CodeItemNotActive      = "item_not_active"
	CodeBoostAlreadyActive = "boost_already_active"
	CodeNotABoost          = "not_a_boost"
	CodeNotEquippable      = "not_equippable"
	CodeForbidden          = "forbidden"

	CodeRetryable = "retryable"
	CodeInternal  = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, code, op, message string) *Error {
	return &Error{Kind: kind, Code: code, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message)}
}

// Wrap annotates err with a kind and code. A nil err yields nil.
func Wrap(kind Kind, code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Op: strings.TrimSpace(op), Message: err.Error(), Cause: err}
}

func Validation(op, message string) *Error {
	return New(KindValidation, CodeInvalidArgument, op, message)
}

func NotFound(code, op, message string) *Error {
	return New(KindNotFound, code, op, message)
}

func Conflict(code, op, message string) *Error {
	return New(KindConflict, code, op, message)
}

func Internal(op string, err error) error {
	return Wrap(KindInternal, CodeInternal, op, err)
}

// CodeOf extracts the business code, or "" when err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the kind. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return KindInternal
}

func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns a short human readable reason for code.
func Message(code string) string {
	switch code {
	case CodeInsufficientCoins:
		return "You do not have enough coins."
	case CodeAlreadyOwned:
		return "You already own this item."
	case CodeAlreadyClaimed:
		return "Today's reward has already been claimed."
	case CodeOutOfStock:
		return "This item is out of stock."
	case CodePrerequisiteNotMet:
		return "Unlock the previous step first."
	case CodeItemNotActive:
		return "This item cannot be used right now."
	case CodeBoostAlreadyActive:
		return "A boost of this type is already active."
	case CodeNotABoost:
		return "This item is not a boost."
	case CodeNotEquippable:
		return "This item cannot be equipped."
	case CodeItemNotFound, CodeInventoryNotFound:
		return "Item not found."
	case CodeSkillNotFound:
		return "Skill not found."
	case CodeBadgeNotFound:
		return "Badge not found."
	case CodeActorNotFound:
		return "Profile not found."
	case CodeUnknownEventType:
		return "Unknown activity type."
	case CodeInvalidArgument:
		return "The request is invalid."
	case CodeForbidden:
		return "You are not allowed to do this."
	case CodeRetryable:
		return "Temporary problem, please retry."
	default:
		return "Something went wrong."
	}
}
