package types

import "time"

type Participant struct {
	ConversationID string          `db:"conversation_id" json:"conversationID"`
	UserID         string          `db:"user_id" json:"userID"`
	Role           ParticipantRole `db:"role" json:"role"`
	Active         bool            `db:"active" json:"active"`
	Muted          bool            `db:"muted" json:"muted"`
	JoinedAt       time.Time       `db:"joined_at" json:"joinedAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`

	User *User `db:"user" json:"user,omitempty"`
}

type ParticipantRole string

const (
	ParticipantRoleMember ParticipantRole = "member"
	ParticipantRoleAdmin  ParticipantRole = "admin"
)

func (r ParticipantRole) String() string {
	return string(r)
}
