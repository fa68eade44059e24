package chat

import (
	"context"
	"errors"
	"strings"

	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/errs"
)

// MaxContentBytes is the maximum size of a message body.
const MaxContentBytes = 5000

// The methods below validate presentation requests and report failures as application errors.
// They are shared by the REST and WebSocket surfaces.

// HandleSendMessage validates and dispatches a message.
func (s *Session) HandleSendMessage(conversationID, content string) *errs.CustomError {
	if strings.TrimSpace(content) == "" {
		return errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len(content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes)
	}
	if _, ok := s.reconciler.Conversation(conversationID); !ok {
		return errs.NewError(errs.ErrConversationNotFound)
	}
	if !s.SendMessage(conversationID, content) {
		return errs.NewError(errs.ErrMessageNotDelivered)
	}
	return nil
}

// HandleConnectionRequest validates and dispatches a connection request to target.
func (s *Session) HandleConnectionRequest(ctx context.Context, target string) *errs.CustomError {
	if target == s.Viewer.ID {
		return errs.NewError(errs.ErrConnectionSelf)
	}

	if _, err := s.directory.Resolve(ctx, target); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return errs.NewError(errs.ErrUserNotFound)
		}
		s.logger.Error().Err(err).Str("target_id", target).Msg("Directory lookup failed.")
		return errs.NewError(errs.ErrDirectoryUnavailable)
	}

	if status := s.connections.Status(target); status != StatusNone {
		return errs.NewError(errs.ErrConnectionNotAllowed)
	}
	if !s.RequestConnection(target) {
		return errs.NewError(errs.ErrMessageNotDelivered)
	}
	return nil
}

// HandleSetActiveConversation opens conversationID; an empty id clears the selection.
func (s *Session) HandleSetActiveConversation(conversationID string) *errs.CustomError {
	if !s.SetActiveConversation(conversationID) {
		return errs.NewError(errs.ErrConversationNotFound)
	}
	return nil
}

// HandleMarkRead clears the unread counter of conversationID.
func (s *Session) HandleMarkRead(conversationID string) *errs.CustomError {
	if !s.MarkRead(conversationID) {
		return errs.NewError(errs.ErrConversationNotFound)
	}
	return nil
}
