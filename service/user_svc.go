package service

import (
	"context"

	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/types"
)

// Login authenticates by username alone, creating the user on first
// login. Meant for development and trusted frontends only.
func (svc *Service) Login(ctx context.Context, in types.Login) (types.LoginOutput, error) {
	var out types.LoginOutput

	if err := in.Validate(); err != nil {
		return out, err
	}

	user, err := svc.Cockroach.UpsertUser(ctx, types.UpsertUser{Username: in.Username})
	if err != nil {
		return out, err
	}

	token, expiresAt, err := svc.Tokens.IssueToken(user.ID)
	if err != nil {
		return out, err
	}

	out.Token = token
	out.ExpiresAt = expiresAt
	out.User = user

	return out, nil
}

// AuthUser resolves a bearer token into its user.
func (svc *Service) AuthUser(ctx context.Context, token string) (types.User, error) {
	userID, err := svc.Tokens.VerifyToken(token)
	if err != nil {
		return types.User{}, err
	}

	user, err := svc.Cockroach.User(ctx, types.RetrieveUser{UserID: userID})
	if errs.IsNotFound(err) {
		return types.User{}, errs.NewUnauthenticatedError("user no longer exists")
	}

	return user, err
}

func (svc *Service) User(ctx context.Context, in types.RetrieveUser) (types.User, error) {
	var out types.User

	if err := in.Validate(); err != nil {
		return out, err
	}

	if _, loggedIn := auth.UserFromContext(ctx); !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Cockroach.User(ctx, in)
}
