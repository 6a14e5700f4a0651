package types

import (
	"time"
	"unicode/utf8"

	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/textutil"
	"github.com/mesahub/mesa/validator"
)

type Message struct {
	ID               string         `db:"id" json:"id"`
	ConversationID   string         `db:"conversation_id" json:"conversationID"`
	SenderID         string         `db:"sender_id" json:"senderID"`
	Content          string         `db:"content" json:"content"`
	MessageType      MessageType    `db:"message_type" json:"messageType"`
	Media            *Media         `db:"media" json:"media,omitempty"`
	ReplyToMessageID *string        `db:"reply_to_message_id" json:"replyToMessageID,omitempty"`
	Metadata         map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`

	Sender       *User                `db:"sender" json:"sender,omitempty"`
	Relationship *MessageRelationship `db:"relationship" json:"relationship,omitempty"`
}

type MessageRelationship struct {
	IsMine bool `json:"isMine"`
}

type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeImage   MessageType = "image"
	MessageTypeSystem  MessageType = "system"
	MessageTypeDeleted MessageType = "deleted"
)

func (t MessageType) String() string {
	return string(t)
}

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSystem, MessageTypeDeleted:
		return true
	}
	return false
}

type Media struct {
	URL             string         `json:"url"`
	Type            MediaType      `json:"type"`
	ThumbnailURL    string         `json:"thumbnailURL,omitempty"`
	SizeBytes       int64          `json:"sizeBytes,omitempty"`
	DurationSeconds float64        `json:"durationSeconds,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeFile  MediaType = "file"
	MediaTypeGIF   MediaType = "gif"
)

func (t MediaType) String() string {
	return string(t)
}

func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio, MediaTypeFile, MediaTypeGIF:
		return true
	}
	return false
}

type SendMessage struct {
	ConversationID   string
	RecipientID      string
	Content          string
	MessageType      MessageType
	Media            *Media
	ReplyToMessageID string
	Metadata         map[string]any

	loggedInUserID string
}

func (in *SendMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in SendMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in SendMessage) HasMedia() bool {
	return in.Media != nil && in.Media.URL != ""
}

func (in *SendMessage) Validate() error {
	v := validator.New()

	in.Content = textutil.SmartTrim(in.Content)

	if in.MessageType == "" {
		in.MessageType = MessageTypeText
	}
	if !in.MessageType.Valid() {
		v.AddError("MessageType", "Message type must be one of: text, image, system, deleted")
	}

	if in.ConversationID == "" && in.RecipientID == "" {
		v.AddError("ConversationID", "Conversation ID or recipient ID is required")
	}
	if in.ConversationID != "" && in.RecipientID != "" {
		v.AddError("ConversationID", "Conversation ID and recipient ID are mutually exclusive")
	}
	if in.ConversationID != "" && !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.RecipientID != "" && !id.Valid(in.RecipientID) {
		v.AddError("RecipientID", "Recipient ID is invalid")
	}

	if in.Content == "" && !in.HasMedia() {
		v.AddError("Content", "Content or media is required")
	}
	if utf8.RuneCountInString(in.Content) > 5000 {
		v.AddError("Content", "Content must be at most 5000 characters")
	}

	if in.Media != nil && !in.Media.Type.Valid() {
		v.AddError("Media", "Media type must be one of: image, video, audio, file, gif")
	}

	return v.AsError()
}

type SentMessage struct {
	Message             Message `json:"message"`
	ConversationID      string  `json:"conversationID"`
	ConversationCreated bool    `json:"conversationCreated"`
}

type ListMessages struct {
	ConversationID string
	PageArgs       PageArgs

	loggedInUserID string
}

func (in *ListMessages) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListMessages) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListMessages) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}
