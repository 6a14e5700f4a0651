package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"syscall"

	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/ptr"
	"github.com/mesahub/mesa/types"
	"github.com/mesahub/mesa/validator"
	goerrs "github.com/nicolasparada/go-errs"
	"github.com/nicolasparada/go-errs/httperrs"
)

var errBadRequest = goerrs.InvalidArgumentError("bad request")

func (h *Handler) respond(w http.ResponseWriter, v any, statusCode int) {
	b, err := json.Marshal(v)
	if err != nil {
		h.respondErr(w, fmt.Errorf("could not json marshal http response body: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, err = w.Write(b)
	if err != nil && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, context.Canceled) {
		h.Logger.Error("could not write http response", "error", err)
	}
}

type errRespBody struct {
	Error   string              `json:"error"`
	Details map[string][]string `json:"details,omitempty"`
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	statusCode := err2code(err)

	body := errRespBody{Error: err.Error()}

	var v *validator.Validator
	if errors.As(err, &v) {
		body.Error = "invalid input"
		body.Details = v.Errors
	}

	if statusCode == http.StatusInternalServerError {
		if !errors.Is(err, context.Canceled) {
			h.Logger.Error("internal server error", "error", err)
		}
		body = errRespBody{Error: "internal server error"}
	}

	h.respond(w, body, statusCode)
}

func err2code(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var v *validator.Validator
	if errors.As(err, &v) {
		return http.StatusUnprocessableEntity
	}

	switch {
	case errors.Is(err, errStreamingUnsupported):
		return http.StatusExpectationFailed
	case errs.IsInvalidArgument(err):
		return http.StatusUnprocessableEntity
	case errs.IsUnauthenticated(err):
		return http.StatusUnauthorized
	case errs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsAlreadyExists(err):
		return http.StatusConflict
	}

	return httperrs.Code(err)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

func (h *Handler) writeSSE(w io.Writer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.Logger.Error("could not json marshal sse data", "error", err)
		_, errWrite := fmt.Fprintf(w, "event: error\ndata: %v\n\n", err)
		if errWrite != nil && !errors.Is(errWrite, syscall.EPIPE) {
			h.Logger.Error("could not write sse error", "error", errWrite)
		}
		return
	}

	_, errWrite := fmt.Fprintf(w, "data: %s\n\n", b)
	if errWrite != nil && !errors.Is(errWrite, syscall.EPIPE) {
		h.Logger.Error("could not write sse data", "error", errWrite)
	}
}

func parsePageArgs(q url.Values) (types.PageArgs, error) {
	var pageArgs types.PageArgs

	if q.Has("first") {
		first, err := strconv.ParseUint(q.Get("first"), 10, 64)
		if err != nil {
			return pageArgs, goerrs.InvalidArgumentError("invalid first page arg")
		}

		pageArgs.First = ptr.From(uint(first))
	}

	if q.Has("after") {
		pageArgs.After = ptr.From(q.Get("after"))
	}

	if q.Has("last") {
		last, err := strconv.ParseUint(q.Get("last"), 10, 64)
		if err != nil {
			return pageArgs, goerrs.InvalidArgumentError("invalid last page arg")
		}

		pageArgs.Last = ptr.From(uint(last))
	}

	if q.Has("before") {
		pageArgs.Before = ptr.From(q.Get("before"))
	}

	return pageArgs, nil
}
