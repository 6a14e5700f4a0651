package types

import (
	"time"

	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/validator"
)

type Conversation struct {
	ID                  string           `db:"id" json:"id"`
	Kind                ConversationKind `db:"kind" json:"kind"`
	Active              bool             `db:"active" json:"active"`
	CreatedBy           string           `db:"created_by" json:"createdBy"`
	DirectKey           *string          `db:"direct_key" json:"-"`
	LastMessagePreview  *string          `db:"last_message_preview" json:"lastMessagePreview"`
	LastMessageSenderID *string          `db:"last_message_sender_id" json:"lastMessageSenderID"`
	LastMessageAt       *time.Time       `db:"last_message_at" json:"lastMessageAt"`
	MessagesCount       int              `db:"messages_count" json:"messagesCount"`
	CreatedAt           time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updatedAt"`

	Participation *Participant `db:"participation" json:"participation,omitempty"`
}

type ConversationKind string

const (
	ConversationKindDirect ConversationKind = "direct"
	ConversationKindGroup  ConversationKind = "group"
)

func (k ConversationKind) String() string {
	return string(k)
}

type ResolveConversation struct {
	RecipientID string

	loggedInUserID string
}

func (in *ResolveConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ResolveConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ResolveConversation) Validate() error {
	v := validator.New()

	if in.RecipientID == "" {
		v.AddError("RecipientID", "Recipient ID is required")
	}
	if !id.Valid(in.RecipientID) {
		v.AddError("RecipientID", "Recipient ID is invalid")
	}

	return v.AsError()
}

// ResolvedConversation carries the Existing marker so callers can skip
// "conversation created" side effects when the row was already there.
type ResolvedConversation struct {
	ID        string    `db:"id" json:"id"`
	Existing  bool      `db:"-" json:"existing"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type RetrieveConversation struct {
	ConversationID string

	loggedInUserID string
}

func (in *RetrieveConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RetrieveConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RetrieveConversation) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}

type ListConversations struct {
	PageArgs PageArgs

	loggedInUserID string
}

func (in *ListConversations) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListConversations) LoggedInUserID() string {
	return in.loggedInUserID
}
