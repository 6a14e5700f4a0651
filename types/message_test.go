package types

import (
	"strings"
	"testing"
)

func TestSendMessage_Validate(t *testing.T) {
	const conversationID = "9m4e2mr0ui3e8a215n4g"
	const recipientID = "9m4e2mr0ui3e8a215n5g"

	tt := []struct {
		name    string
		in      SendMessage
		wantErr bool
	}{
		{
			name: "content_to_conversation",
			in:   SendMessage{ConversationID: conversationID, Content: "hello"},
		},
		{
			name: "content_to_recipient",
			in:   SendMessage{RecipientID: recipientID, Content: "hello"},
		},
		{
			name:    "no_target",
			in:      SendMessage{Content: "hello"},
			wantErr: true,
		},
		{
			name:    "both_targets",
			in:      SendMessage{ConversationID: conversationID, RecipientID: recipientID, Content: "hello"},
			wantErr: true,
		},
		{
			name:    "malformed_conversation_id",
			in:      SendMessage{ConversationID: "nope", Content: "hello"},
			wantErr: true,
		},
		{
			name:    "malformed_recipient_id",
			in:      SendMessage{RecipientID: "nope", Content: "hello"},
			wantErr: true,
		},
		{
			name:    "empty_content_without_media",
			in:      SendMessage{ConversationID: conversationID},
			wantErr: true,
		},
		{
			name:    "whitespace_only_content",
			in:      SendMessage{ConversationID: conversationID, Content: "   \n\t "},
			wantErr: true,
		},
		{
			name: "media_without_content",
			in: SendMessage{
				ConversationID: conversationID,
				MessageType:    MessageTypeImage,
				Media:          &Media{URL: "https://cdn.example.com/pic.png", Type: MediaTypeImage},
			},
		},
		{
			name: "media_with_invalid_type",
			in: SendMessage{
				ConversationID: conversationID,
				Media:          &Media{URL: "https://cdn.example.com/pic.png", Type: "hologram"},
			},
			wantErr: true,
		},
		{
			name:    "invalid_message_type",
			in:      SendMessage{ConversationID: conversationID, Content: "hello", MessageType: "telegram"},
			wantErr: true,
		},
		{
			name: "content_at_limit",
			in:   SendMessage{ConversationID: conversationID, Content: strings.Repeat("й", 5000)},
		},
		{
			name:    "content_over_limit",
			in:      SendMessage{ConversationID: conversationID, Content: strings.Repeat("й", 5001)},
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Errorf("want error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSendMessage_Validate_DefaultsType(t *testing.T) {
	in := SendMessage{ConversationID: "9m4e2mr0ui3e8a215n4g", Content: "hello"}
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.MessageType != MessageTypeText {
		t.Errorf("want message type to default to text, got %q", in.MessageType)
	}
}
