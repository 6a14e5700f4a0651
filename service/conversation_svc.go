package service

import (
	"context"

	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/types"
)

// ResolveConversation finds or creates the direct conversation between
// the authenticated user and the recipient. Concurrent calls for the
// same pair all land on the same conversation.
func (svc *Service) ResolveConversation(ctx context.Context, in types.ResolveConversation) (types.ResolvedConversation, error) {
	var out types.ResolvedConversation

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	if in.RecipientID == loggedInUser.ID {
		return out, errs.NewInvalidArgumentError("RecipientID", "cannot start a conversation with yourself")
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.ResolveDirectConversation(ctx, in)
}

func (svc *Service) Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	var out types.Conversation

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.Conversation(ctx, in)
}

func (svc *Service) Conversations(ctx context.Context, in types.ListConversations) (types.Page[types.Conversation], error) {
	var out types.Page[types.Conversation]

	if err := in.PageArgs.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.Conversations(ctx, in)
}

func (svc *Service) CreateGroupConversation(ctx context.Context) (types.Created, error) {
	var out types.Created

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Cockroach.CreateGroupConversation(ctx, loggedInUser.ID)
}

// MuteConversation stops notification fan-out for the authenticated
// user in the given conversation. Messages keep flowing either way.
func (svc *Service) MuteConversation(ctx context.Context, conversationID string, muted bool) error {
	if !id.Valid(conversationID) {
		return errs.NewInvalidArgumentError("ConversationID", "Conversation ID is invalid")
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	if _, err := svc.Cockroach.Participant(ctx, conversationID, loggedInUser.ID); err != nil {
		return err
	}

	return svc.Cockroach.SetParticipantMuted(ctx, conversationID, loggedInUser.ID, muted)
}

// DeleteConversation soft-deletes a conversation. Only admins may do it.
func (svc *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	if !id.Valid(conversationID) {
		return errs.NewInvalidArgumentError("ConversationID", "Conversation ID is invalid")
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	p, err := svc.Cockroach.Participant(ctx, conversationID, loggedInUser.ID)
	if err != nil {
		return err
	}

	if p.Role != types.ParticipantRoleAdmin {
		return errs.NewPermissionDeniedError("only admins can delete a conversation")
	}

	return svc.Cockroach.DeactivateConversation(ctx, conversationID)
}

func (svc *Service) Participants(ctx context.Context, conversationID string) ([]types.Participant, error) {
	if !id.Valid(conversationID) {
		return nil, errs.NewInvalidArgumentError("ConversationID", "Conversation ID is invalid")
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	if _, err := svc.Cockroach.Participant(ctx, conversationID, loggedInUser.ID); err != nil {
		return nil, err
	}

	return svc.Cockroach.Participants(ctx, conversationID)
}
