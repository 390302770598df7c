package http

import (
	"net/http"

	"github.com/viralforge/license-service/internal/application"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readyCheck != nil {
		if err := h.readyCheck(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "license store unreachable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req application.ActivateRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "activate", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()
	req.RequestID = requestIDFromContext(r.Context())

	res, err := h.service.Activate(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "activate", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req application.CheckRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "check", err)
		return
	}

	res, err := h.service.Check(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "check", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
