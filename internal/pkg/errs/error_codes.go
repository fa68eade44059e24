/*
Package errs provides custom error types and application-level error code constants.

These codes identify request, conversation, connection and session failures both inside the
server and in the JSON/WebSocket payloads sent to the presentation layer.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Conversation and Connection Errors
const (
	// ErrConversationNotFound indicates that the conversation id is not part of the viewer's session.
	ErrConversationNotFound = 2101

	// ErrMessageContentEmpty indicates that a message without any visible content was sent.
	ErrMessageContentEmpty = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length.
	ErrMessageContentTooLong = 2202

	// ErrMessageNotDelivered indicates that the intent was dropped, usually because the session is not connected.
	ErrMessageNotDelivered = 2203

	// ErrConnectionSelf indicates that the viewer tried to connect with themselves.
	ErrConnectionSelf = 2301

	// ErrConnectionNotAllowed indicates that a request was made while a request is pending or settled.
	ErrConnectionNotAllowed = 2302
)

// 3xxx: User and Session Errors
const (
	// ErrUserNotFound indicates that the directory has no profile for the given id.
	ErrUserNotFound = 3001

	// ErrUnauthorized indicates that the request carries no valid session token.
	ErrUnauthorized = 3002

	// ErrSessionNotFound indicates that the token is valid but its session was logged out or expired.
	ErrSessionNotFound = 3003

	// ErrSessionKicked indicates that the connection was closed because a newer login replaced the session.
	ErrSessionKicked = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrDirectoryUnavailable indicates that the user directory could not be queried.
	ErrDirectoryUnavailable = 5001
)
