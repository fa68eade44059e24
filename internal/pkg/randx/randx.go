/*
Package randx generates identifiers used by the realtime core.

Message ids are prefixed UUID v4 strings so that server-produced, system-produced and seeded
messages can be told apart in logs and client payloads.
*/
package randx

import (
	"regexp"

	"github.com/google/uuid"
)

const (
	// MessageIDPrefix marks messages produced by the delivery layer.
	MessageIDPrefix = "msg_"

	// SystemMessageIDPrefix marks synthetic messages such as the connection greeting.
	SystemMessageIDPrefix = "sys_"
)

// userIDPattern accepts the directory id format: a letter followed by letters, digits, '_' or '-'.
var userIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// MessageID returns a new unique message id.
func MessageID() string {
	return MessageIDPrefix + uuid.NewString()
}

// SystemMessageID returns a new unique id for a system message.
func SystemMessageID() string {
	return SystemMessageIDPrefix + uuid.NewString()
}

// IsValidUserID reports whether id has the shape of a directory user id.
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}
