package types

import (
	"strings"
	"time"

	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/validator"
)

type Notification struct {
	ID             string               `db:"id" json:"id"`
	UserID         string               `db:"user_id" json:"userID"`
	Kind           NotificationKind     `db:"kind" json:"kind"`
	Title          string               `db:"title" json:"title"`
	Body           string               `db:"body" json:"body"`
	Priority       NotificationPriority `db:"priority" json:"priority"`
	ConversationID *string              `db:"conversation_id" json:"conversationID,omitempty"`
	MessageID      *string              `db:"message_id" json:"messageID,omitempty"`
	ReadAt         *time.Time           `db:"read_at" json:"readAt"`
	PushSent       bool                 `db:"push_sent" json:"pushSent"`
	PushSentAt     *time.Time           `db:"push_sent_at" json:"pushSentAt"`
	CreatedAt      time.Time            `db:"created_at" json:"createdAt"`
}

func (n Notification) Read() bool {
	return n.ReadAt != nil
}

// Link is the deep-link target clients open when the notification is tapped.
func (n Notification) Link() string {
	if n.ConversationID != nil {
		return "/conversations/" + *n.ConversationID
	}
	return "/notifications"
}

type NotificationKind string

const (
	NotificationKindMessage NotificationKind = "message"
	NotificationKindSystem  NotificationKind = "system"
)

func (k NotificationKind) String() string {
	return string(k)
}

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationKindMessage, NotificationKindSystem:
		return true
	}
	return false
}

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

func (p NotificationPriority) String() string {
	return string(p)
}

func (p NotificationPriority) Valid() bool {
	switch p {
	case NotificationPriorityLow, NotificationPriorityNormal, NotificationPriorityHigh, NotificationPriorityUrgent:
		return true
	}
	return false
}

type CreateNotification struct {
	RecipientID    string
	Title          string
	Body           string
	Kind           NotificationKind
	Priority       NotificationPriority
	ConversationID string
	MessageID      string
}

func (in *CreateNotification) Validate() error {
	v := validator.New()

	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)

	if in.RecipientID == "" {
		v.AddError("RecipientID", "Recipient ID is required")
	}
	if !id.Valid(in.RecipientID) {
		v.AddError("RecipientID", "Recipient ID is invalid")
	}

	if in.Title == "" {
		v.AddError("Title", "Title is required")
	}
	if in.Body == "" {
		v.AddError("Body", "Body is required")
	}

	if in.Kind == "" {
		in.Kind = NotificationKindSystem
	}
	if !in.Kind.Valid() {
		v.AddError("Kind", "Kind must be one of: message, system")
	}

	if in.Priority == "" {
		in.Priority = NotificationPriorityNormal
	}
	if !in.Priority.Valid() {
		v.AddError("Priority", "Priority must be one of: low, normal, high, urgent")
	}

	return v.AsError()
}

// FanoutMessageNotifications creates one message notification per
// active, unmuted participant of the conversation, excluding the sender.
type FanoutMessageNotifications struct {
	ConversationID string
	MessageID      string
	SenderID       string
	Title          string
	Body           string
	Priority       NotificationPriority
}

// NotificationDelivery is the outcome of dispatching one notification
// to every registered device of its recipient. Success reports that the
// notification row is durable; push failures degrade it, never unset it.
type NotificationDelivery struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notificationID"`
	PushSent       bool   `json:"pushSent"`
	SentTo         int    `json:"sentTo"`
	Failed         int    `json:"failed"`
	Total          int    `json:"total"`
}

type ListNotifications struct {
	PageArgs PageArgs

	userID string
}

func (in *ListNotifications) SetUserID(userID string) {
	in.userID = userID
}

func (in ListNotifications) UserID() string {
	return in.userID
}

type ReadNotification struct {
	NotificationID string

	userID string
}

func (in *ReadNotification) SetUserID(userID string) {
	in.userID = userID
}

func (in ReadNotification) UserID() string {
	return in.userID
}

func (in *ReadNotification) Validate() error {
	v := validator.New()

	if in.NotificationID == "" {
		v.AddError("NotificationID", "Notification ID is required")
	}

	return v.AsError()
}
