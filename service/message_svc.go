package service

import (
	"context"
	"strings"

	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/emoji"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/types"
)

// SendMessage delivers a message into a conversation, resolving the
// conversation first when only a recipient is given. The message write
// is the hard part of the operation: notification fan-out runs in the
// background and its failure never fails the send.
func (svc *Service) SendMessage(ctx context.Context, in types.SendMessage) (types.SentMessage, error) {
	var out types.SentMessage

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	conversationID := in.ConversationID
	if in.RecipientID != "" {
		if in.RecipientID == loggedInUser.ID {
			return out, errs.NewInvalidArgumentError("RecipientID", "cannot message yourself")
		}

		resolve := types.ResolveConversation{RecipientID: in.RecipientID}
		resolve.SetLoggedInUserID(loggedInUser.ID)

		resolved, err := svc.Cockroach.ResolveDirectConversation(ctx, resolve)
		if err != nil {
			return out, err
		}

		conversationID = resolved.ID
		out.ConversationCreated = !resolved.Existing
	} else {
		if err := svc.Cockroach.EnsureParticipant(ctx, conversationID, loggedInUser.ID); err != nil {
			return out, err
		}
	}

	svc.resolveReplyTo(ctx, &in, conversationID)
	annotateJumboable(&in)

	msg, err := svc.Cockroach.CreateMessageSafely(ctx, in, conversationID)
	if isBusinessError(err) {
		return out, err
	}

	if err != nil {
		svc.Logger.Warn("atomic message write failed, falling back", "error", err)

		msg, err = svc.fallbackSendMessage(ctx, in, conversationID)
		if err != nil {
			return out, err
		}
	}

	svc.background(func(ctx context.Context) error {
		return svc.notifyNewMessage(ctx, msg, loggedInUser)
	})

	out.Message = msg
	out.ConversationID = conversationID

	return out, nil
}

// fallbackSendMessage is the degraded write path for when the atomic
// write failed on infrastructure rather than on a rule. It lands the
// message alone and reconciles the conversation summary out of band; a
// crash in between leaves the summary stale until the next send.
func (svc *Service) fallbackSendMessage(ctx context.Context, in types.SendMessage, conversationID string) (types.Message, error) {
	msg, err := svc.Cockroach.InsertMessage(ctx, in, conversationID)
	if err != nil {
		return msg, err
	}

	svc.background(func(ctx context.Context) error {
		return svc.Cockroach.UpdateConversationSummary(ctx, msg)
	})

	return msg, nil
}

func (svc *Service) Messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	if _, err := svc.Cockroach.Participant(ctx, in.ConversationID, loggedInUser.ID); err != nil {
		return out, err
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	// Opening a conversation clears its unread notifications.
	svc.background(func(ctx context.Context) error {
		return svc.Cockroach.ReadConversationNotifications(ctx, in.ConversationID, loggedInUser.ID)
	})

	return svc.Cockroach.Messages(ctx, in)
}

// resolveReplyTo drops reply references that point outside the
// conversation or at messages that no longer exist. The message still
// goes through; the dropped reference is kept in metadata so clients
// can tell a detached reply from a plain message.
func (svc *Service) resolveReplyTo(ctx context.Context, in *types.SendMessage, conversationID string) {
	if in.ReplyToMessageID == "" {
		return
	}

	replyConversationID, err := svc.Cockroach.MessageConversationID(ctx, in.ReplyToMessageID)
	if err == nil && replyConversationID == conversationID {
		return
	}

	if err != nil && !errs.IsNotFound(err) {
		svc.Logger.Warn("could not verify reply target", "error", err)
	}

	if in.Metadata == nil {
		in.Metadata = map[string]any{}
	}
	in.Metadata["dropped_reply_to"] = in.ReplyToMessageID
	in.ReplyToMessageID = ""
}

// annotateJumboable marks messages made of nothing but emoji so
// clients can render them extra large.
func annotateJumboable(in *types.SendMessage) {
	fields := strings.Fields(in.Content)
	if len(fields) == 0 {
		return
	}

	for _, f := range fields {
		if !emoji.IsValid(f) {
			return
		}
	}

	if in.Metadata == nil {
		in.Metadata = map[string]any{}
	}
	in.Metadata["jumboable"] = true
}

func isBusinessError(err error) bool {
	return errs.IsInvalidArgument(err) ||
		errs.IsNotFound(err) ||
		errs.IsAlreadyExists(err) ||
		errs.IsPermissionDenied(err) ||
		errs.IsUnauthenticated(err)
}
