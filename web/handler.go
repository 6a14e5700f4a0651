package web

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	Service *service.Service
	Logger  *slog.Logger

	handler http.Handler
	once    sync.Once
}

func (h *Handler) init() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("GET /api/users/{username}", h.user)

	mux.HandleFunc("POST /api/messages", h.sendMessage)

	mux.HandleFunc("GET /api/conversations", h.conversations)
	mux.HandleFunc("POST /api/conversations", h.createGroupConversation)
	mux.HandleFunc("POST /api/conversations/resolve", h.resolveConversation)
	mux.HandleFunc("GET /api/conversations/{conversationID}", h.conversation)
	mux.HandleFunc("DELETE /api/conversations/{conversationID}", h.deleteConversation)
	mux.HandleFunc("GET /api/conversations/{conversationID}/messages", h.messages)
	mux.HandleFunc("GET /api/conversations/{conversationID}/participants", h.participants)
	mux.HandleFunc("PUT /api/conversations/{conversationID}/mute", h.muteConversation)
	mux.HandleFunc("DELETE /api/conversations/{conversationID}/mute", h.unmuteConversation)

	mux.HandleFunc("GET /api/notifications", h.notifications)
	mux.HandleFunc("POST /api/notifications", h.sendNotification)
	mux.HandleFunc("POST /api/notifications/{notificationID}/read", h.readNotification)
	mux.HandleFunc("POST /api/notifications/read", h.readNotifications)
	mux.HandleFunc("GET /api/has-unread-notifications", h.hasUnreadNotifications)

	mux.HandleFunc("POST /api/push-tokens", h.registerPushToken)

	mux.Handle("GET /metrics", promhttp.Handler())

	h.handler = h.withUser(mux)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(h.init)
	h.handler.ServeHTTP(w, r)
}

// withUser authenticates bearer requests. Requests without an
// Authorization header pass through anonymously; each operation
// decides whether it requires a user.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.Service.AuthUser(r.Context(), token)
		if err != nil {
			h.respondErr(w, err)
			return
		}

		ctx := auth.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
