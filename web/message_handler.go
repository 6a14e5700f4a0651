package web

import (
	"net/http"

	"github.com/mesahub/mesa/types"
)

type sendMessageReqBody struct {
	ConversationID   string         `json:"conversationID"`
	RecipientID      string         `json:"recipientID"`
	Content          string         `json:"content"`
	MessageType      string         `json:"messageType"`
	Media            *types.Media   `json:"media"`
	ReplyToMessageID string         `json:"replyToMessageID"`
	Metadata         map[string]any `json:"metadata"`
}

type sendMessageRespBody struct {
	Message        types.Message `json:"message"`
	MessageID      string        `json:"messageID"`
	ConversationID string        `json:"conversationID"`
	Success        bool          `json:"success"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var reqBody sendMessageReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.SendMessage(r.Context(), types.SendMessage{
		ConversationID:   reqBody.ConversationID,
		RecipientID:      reqBody.RecipientID,
		Content:          reqBody.Content,
		MessageType:      types.MessageType(reqBody.MessageType),
		Media:            reqBody.Media,
		ReplyToMessageID: reqBody.ReplyToMessageID,
		Metadata:         reqBody.Metadata,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	statusCode := http.StatusOK
	if out.ConversationCreated {
		statusCode = http.StatusCreated
	}

	h.respond(w, sendMessageRespBody{
		Message:        out.Message,
		MessageID:      out.Message.ID,
		ConversationID: out.ConversationID,
		Success:        true,
	}, statusCode)
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.Messages(r.Context(), types.ListMessages{
		ConversationID: r.PathValue("conversationID"),
		PageArgs:       pageArgs,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
