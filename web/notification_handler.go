package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mesahub/mesa/types"
)

var errStreamingUnsupported = errors.New("streaming unsupported")

// notifications lists the authenticated user's notifications, or
// streams them in realtime when the client asks for server-sent events.
func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.notificationStream(w, r)
		return
	}

	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.Notifications(r.Context(), types.ListNotifications{
		PageArgs: pageArgs,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) notificationStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondErr(w, errStreamingUnsupported)
		return
	}

	nn, err := h.Service.NotificationStream(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for n := range nn {
		h.writeSSE(w, n)
		flusher.Flush()
	}
}

type sendNotificationReqBody struct {
	RecipientID    string `json:"recipientID"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Kind           string `json:"kind"`
	Priority       string `json:"priority"`
	ConversationID string `json:"conversationID"`
	MessageID      string `json:"messageID"`
}

func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var reqBody sendNotificationReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.SendNotification(r.Context(), types.CreateNotification{
		RecipientID:    reqBody.RecipientID,
		Title:          reqBody.Title,
		Body:           reqBody.Body,
		Kind:           types.NotificationKind(reqBody.Kind),
		Priority:       types.NotificationPriority(reqBody.Priority),
		ConversationID: reqBody.ConversationID,
		MessageID:      reqBody.MessageID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) readNotification(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ReadNotification(r.Context(), types.ReadNotification{
		NotificationID: r.PathValue("notificationID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) readNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.ReadNotifications(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type hasUnreadNotificationsRespBody struct {
	HasUnread bool `json:"hasUnread"`
}

func (h *Handler) hasUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.HasUnreadNotifications(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, hasUnreadNotificationsRespBody{HasUnread: out}, http.StatusOK)
}
