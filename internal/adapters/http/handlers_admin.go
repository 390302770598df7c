package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/license-service/internal/application"
)

func (h *Handler) createLicense(w http.ResponseWriter, r *http.Request) {
	var req application.CreateLicenseRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_license", err)
		return
	}

	res, err := h.service.CreateLicense(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_license", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) listLicenses(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLicenses(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "list_licenses", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"licenses": items,
		"count":    len(items),
	})
}

func (h *Handler) deactivateLicense(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.DeactivateLicense(r.Context(), key); err != nil {
		writeMappedError(r.Context(), w, "deactivate_license", err)
		return
	}
	writeMessage(w, http.StatusOK, "license deactivated")
}
