// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/pipeline"
	"github.com/tomtom215/shopsignal/internal/recommend/storage"
)

// reloadResponse is the data of POST /model/reload.
type reloadResponse struct {
	Swapped bool                 `json:"swapped"`
	Model   *recommend.ModelInfo `json:"model"`
}

// Model handles GET /api/v1/model and reports the served model.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	loaded := h.handle.Current()
	if loaded == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeModelNotLoaded, recommend.KindModelUnavailable.Code(), nil)
		return
	}
	respondJSON(w, r, http.StatusOK, loaded.Info, Metadata{ModelVersion: loaded.Info.Version})
}

// ReloadModel handles POST /api/v1/model/reload. Without ?version it loads
// the current Production version; with it, that exact version. A failed
// reload keeps the served model.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeReloadRejected, "Model reloading is not configured", nil)
		return
	}

	start := time.Now()
	var (
		loaded  *recommend.Loaded
		swapped bool
		err     error
	)
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, perr := strconv.Atoi(raw)
		if perr != nil || version <= 0 {
			respondError(w, r, http.StatusBadRequest, CodeValidation, fmt.Sprintf("version must be a positive integer, got %q", raw), nil)
			return
		}
		loaded, err = h.loader.LoadVersion(r.Context(), version)
		swapped = err == nil
	} else {
		loaded, swapped, err = h.loader.LoadProduction(r.Context())
	}

	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrNoProductionModel):
		respondError(w, r, http.StatusNotFound, CodeNoProduction, "No model version is in Production", nil)
		return
	case errors.Is(err, storage.ErrVersionNotFound), errors.Is(err, storage.ErrModelNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Model version not found", err)
		return
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, r, http.StatusServiceUnavailable, CodeReloadRejected, "Model loading is paused after repeated failures", err)
		return
	default:
		respondError(w, r, http.StatusInternalServerError, CodeReloadFailed, "Model reload failed; the previous model is still served", err)
		return
	}

	meta := Metadata{QueryTimeMS: time.Since(start).Milliseconds()}
	resp := reloadResponse{Swapped: swapped}
	if loaded != nil {
		info := loaded.Info
		resp.Model = &info
		meta.ModelVersion = info.Version
	}
	respondJSON(w, r, http.StatusOK, resp, meta)
}
