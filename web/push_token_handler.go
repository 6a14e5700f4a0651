package web

import (
	"net/http"

	"github.com/mesahub/mesa/types"
)

type registerPushTokenReqBody struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	Platform   string `json:"platform"`
	DeviceName string `json:"deviceName"`
}

func (h *Handler) registerPushToken(w http.ResponseWriter, r *http.Request) {
	var reqBody registerPushTokenReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	out, err := h.Service.RegisterPushToken(r.Context(), types.RegisterPushToken{
		Endpoint:   reqBody.Endpoint,
		P256dh:     reqBody.P256dh,
		Auth:       reqBody.Auth,
		Platform:   types.PushPlatform(reqBody.Platform),
		DeviceName: reqBody.DeviceName,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}
