package web

import (
	"net/http"

	"github.com/mesahub/mesa/types"
)

type resolveConversationReqBody struct {
	RecipientID string `json:"recipientID"`
}

func (h *Handler) resolveConversation(w http.ResponseWriter, r *http.Request) {
	var reqBody resolveConversationReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.ResolveConversation(r.Context(), types.ResolveConversation{
		RecipientID: reqBody.RecipientID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	statusCode := http.StatusCreated
	if out.Existing {
		statusCode = http.StatusOK
	}

	h.respond(w, out, statusCode)
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Conversation(r.Context(), types.RetrieveConversation{
		ConversationID: r.PathValue("conversationID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.Conversations(r.Context(), types.ListConversations{
		PageArgs: pageArgs,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) createGroupConversation(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.CreateGroupConversation(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Participants(r.Context(), r.PathValue("conversationID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteConversation(r.Context(), r.PathValue("conversationID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) muteConversation(w http.ResponseWriter, r *http.Request) {
	h.setConversationMuted(w, r, true)
}

func (h *Handler) unmuteConversation(w http.ResponseWriter, r *http.Request) {
	h.setConversationMuted(w, r, false)
}

func (h *Handler) setConversationMuted(w http.ResponseWriter, r *http.Request, muted bool) {
	err := h.Service.MuteConversation(r.Context(), r.PathValue("conversationID"), muted)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
