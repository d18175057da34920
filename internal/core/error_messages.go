package core

// error_messages.go maps technical errors to user-facing messages with codes
// support staff can look up.
//
// Codes by category:
//
//	OFF001  Offer or user not found                    404
//	USR001  Email already registered                   409
//	AUTH001 Not the host of this offer                 403
//	AUTH002 No user identity on the request            401
//	VAL001  Request failed validation                  400
//	IMP001  Too many imports in progress               503
//	IMP002  Upload exceeds the size limit              413
//	IMP003  Imported row has no host email             400
//	IMP004  Import stopped at a failing row            422
//	DB004   Storage unreachable                        503
//	DB006   Operation timed out                        504
//	REQ001  Request cancelled                          499
//	ERR000  Anything else                              500
//
// Sentinel errors are matched with errors.Is first, so wrapping keeps the
// mapping intact. Errors from drivers that carry no sentinel fall back to
// case-insensitive substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// ErrUnauthorized is returned when an operation needs a user and none was given.
var ErrUnauthorized = errors.New("unauthorized")

// ErrFileTooLarge is returned when an upload exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// StatusClientClosedRequest is the non-standard status for requests the
// client abandoned.
const StatusClientClosedRequest = 499

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Status  int    `json:"-"`
}

type errorRule struct {
	target  error
	pattern string
	msg     UserMessage
}

var errorRules = []errorRule{
	{
		target: domain.ErrNotFound,
		msg: UserMessage{
			Message: "The requested record does not exist",
			Action:  "Check the id and try again",
			Code:    "OFF001",
			Status:  http.StatusNotFound,
		},
	},
	{
		target: domain.ErrDuplicateEmail,
		msg: UserMessage{
			Message: "A user with this email already exists",
			Action:  "Use another email or sign in",
			Code:    "USR001",
			Status:  http.StatusConflict,
		},
	},
	{
		target: ErrForbidden,
		msg: UserMessage{
			Message: "Only the host of an offer can change it",
			Code:    "AUTH001",
			Status:  http.StatusForbidden,
		},
	},
	{
		target: ErrUnauthorized,
		msg: UserMessage{
			Message: "This action requires a user",
			Action:  "Send the X-User-ID header",
			Code:    "AUTH002",
			Status:  http.StatusUnauthorized,
		},
	},
	{
		target: ErrValidation,
		msg: UserMessage{
			Message: "The request contains invalid values",
			Action:  "Correct the listed fields and try again",
			Code:    "VAL001",
			Status:  http.StatusBadRequest,
		},
	},
	{
		target: ErrTooManyImports,
		msg: UserMessage{
			Message: "The system is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		target: ErrFileTooLarge,
		msg: UserMessage{
			Message: "The file exceeds the maximum import size",
			Action:  "Split the file into smaller chunks",
			Code:    "IMP002",
			Status:  http.StatusRequestEntityTooLarge,
		},
	},
	{
		target: ErrHostEmailRequired,
		msg: UserMessage{
			Message: "An imported row has no host email",
			Action:  "Fill the hostEmail column for every row",
			Code:    "IMP003",
			Status:  http.StatusBadRequest,
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
			Status:  StatusClientClosedRequest,
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
			Status:  http.StatusGatewayTimeout,
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "server selection error",
		msg: UserMessage{
			Message: "Unable to reach the database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
			Status:  http.StatusGatewayTimeout,
		},
	},
}

// defaultMessage is returned when no rule matches. Check the logs for the
// technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// abortedImport is used for a *RowError that matches no more specific rule.
var abortedImport = UserMessage{
	Message: "The import stopped at a row that could not be saved",
	Action:  "Fix the reported line and import the remaining rows",
	Code:    "IMP004",
	Status:  http.StatusUnprocessableEntity,
}

// MapError converts a technical error to a user-facing message.
//
// Example:
//
//	err := fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
//	msg := MapError(err)
//	// msg.Code == "OFF001", msg.Status == 404
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if r.target != nil && errors.Is(err, r.target) {
			return r.msg
		}
	}

	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return abortedImport
	}

	errStr := strings.ToLower(err.Error())
	for _, r := range errorRules {
		if r.pattern != "" && strings.Contains(errStr, r.pattern) {
			return r.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Action == "" {
		return fmt.Sprintf("%s (Code: %s)", msg.Message, msg.Code)
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a specific rule rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
