/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its user-facing message and HTTP status.
*/
package errs

import "net/http"

// errorMap holds the CustomError template for each application error code.
// A zero Status is rendered as 200 OK with the code in the body.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Conversation and Connection Errors
	ErrConversationNotFound:  {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message is empty."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrMessageNotDelivered:   {Code: ErrMessageNotDelivered, Message: "Your message didn't send. Check your connection."},
	ErrConnectionSelf:        {Code: ErrConnectionSelf, Message: "You cannot connect with yourself."},
	ErrConnectionNotAllowed:  {Code: ErrConnectionNotAllowed, Message: "A connection request already exists for this user."},

	// 3xxx: User and Session Errors
	ErrUserNotFound:    {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrUnauthorized:    {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionNotFound: {Code: ErrSessionNotFound, Message: "Your session has ended. Please sign in again.", Status: http.StatusUnauthorized},
	ErrSessionKicked:   {Code: ErrSessionKicked, Message: "You were signed in somewhere else."},

	// 5xxx: Internal System Errors
	ErrUnknown:              {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrDirectoryUnavailable: {Code: ErrDirectoryUnavailable, Message: "The campus directory is unavailable.", Status: http.StatusServiceUnavailable},
}
