package web

import (
	"net/http"

	"github.com/mesahub/mesa/types"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in types.Login
	if err := decodeJSON(r, &in); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.Login(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.User(r.Context(), types.RetrieveUser{
		Username: r.PathValue("username"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
