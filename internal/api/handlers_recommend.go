// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/shopsignal/internal/metrics"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/validation"
)

const (
	maxRecommendBody = 64 << 10
	maxBatchBody     = 8 << 20
)

// recommendRequest is the POST body. K is a pointer so an omitted k gets
// the default while an explicit 0 yields an empty list.
type recommendRequest struct {
	CustomerID string `json:"customer_id"`
	K          *int   `json:"k"`
}

// batchRequest is the POST /recommend/batch body.
type batchRequest struct {
	Rows []recommend.PredictRow `json:"rows" validate:"required,min=1,dive"`
}

// batchResponse is the data of an accepted batch request. Like the single
// route, a missing model is reported in-band: OK=false, Error set and an
// empty rec_list for every row.
type batchResponse struct {
	Results      []recommend.BatchResult `json:"results"`
	Count        int                     `json:"count"`
	OK           bool                    `json:"ok"`
	Error        *string                 `json:"error"`
	ModelVersion int                     `json:"model_version"`
	Backend      recommend.Backend       `json:"backend"`
}

// Recommend handles POST /api/v1/recommend.
//
// The body is the serving contract {customer_id, k} and the reply is
// always {customer_id, rec_list, ok, error}: a missing model is ok=false
// with error "model_not_loaded" and status 200. Only malformed input
// changes the status (400).
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecommendBody)

	var body recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.rejectPrediction(w, r, "", "malformed JSON body")
		return
	}

	k := h.opts.DefaultK
	if body.K != nil {
		k = *body.K
	}
	h.serve(w, r, recommend.Request{CustomerID: body.CustomerID, K: k})
}

// RecommendForCustomer handles GET /api/v1/recommend/{customerID}?k=.
func (h *Handler) RecommendForCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	k := h.opts.DefaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.rejectPrediction(w, r, customerID, fmt.Sprintf("k must be an integer, got %q", raw))
			return
		}
		k = parsed
	}
	h.serve(w, r, recommend.Request{CustomerID: customerID, K: k})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, req recommend.Request) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		h.rejectPrediction(w, r, req.CustomerID, verr.Error())
		return
	}
	if req.K > h.opts.MaxK {
		h.rejectPrediction(w, r, req.CustomerID, fmt.Sprintf("k must be <= %d, got %d", h.opts.MaxK, req.K))
		return
	}

	start := time.Now()
	resp := recommend.Serve(h.handle, req)
	outcome := resp.Outcome()
	metrics.RecordPrediction(string(resp.Backend), outcome, time.Since(start))

	status := http.StatusOK
	if outcome == "invalid" {
		status = http.StatusBadRequest
	}
	writeJSON(w, r, status, &resp)
}

// rejectPrediction answers in the serving shape with an invalid_argument
// error.
func (h *Handler) rejectPrediction(w http.ResponseWriter, r *http.Request, customerID, detail string) {
	msg := recommend.KindInvalidArgument.Code() + ": " + detail
	metrics.RecordPrediction("", "invalid", 0)
	writeJSON(w, r, http.StatusBadRequest, &recommend.Response{
		CustomerID: customerID,
		RecList:    []recommend.RecItem{},
		OK:         false,
		Error:      &msg,
	})
}

// RecommendBatch handles POST /api/v1/recommend/batch. Rows omitting k use
// the batch default; results keep input order.
func (h *Handler) RecommendBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBody)

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Request body must be {\"rows\": [{\"customer_id\": ..., \"k\": ...}]}", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, r, http.StatusBadRequest, &APIError{Code: CodeValidation, Message: verr.Error(), Details: verr.Details()})
		return
	}
	if len(req.Rows) > h.opts.MaxBatchSize {
		respondError(w, r, http.StatusBadRequest, CodeValidation,
			fmt.Sprintf("at most %d rows per batch, got %d", h.opts.MaxBatchSize, len(req.Rows)), nil)
		return
	}
	for n, row := range req.Rows {
		if row.K != nil && *row.K > h.opts.MaxK {
			respondError(w, r, http.StatusBadRequest, CodeValidation,
				fmt.Sprintf("row %d: k must be <= %d, got %d", n, h.opts.MaxK, *row.K), nil)
			return
		}
	}

	loaded := h.handle.Current()
	if loaded == nil {
		h.batchNotLoaded(w, r, req.Rows)
		return
	}

	start := time.Now()
	results, err := recommend.BatchPredict(loaded.Recommender, req.Rows, h.opts.BatchWorkers)
	backend := string(loaded.Recommender.Backend())
	if err != nil {
		if recommend.KindOf(err) == recommend.KindInvalidArgument {
			metrics.RecordPrediction(backend, "invalid", time.Since(start))
			respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
			return
		}
		metrics.RecordPrediction(backend, "error", time.Since(start))
		respondError(w, r, http.StatusInternalServerError, CodePredictionFailed, "Batch prediction failed", err)
		return
	}
	elapsed := time.Since(start)
	metrics.RecordPrediction(backend, "batch", elapsed)
	metrics.BatchRowsTotal.Add(float64(len(results)))

	respondJSON(w, r, http.StatusOK, batchResponse{
		Results:      results,
		Count:        len(results),
		OK:           true,
		ModelVersion: loaded.Info.Version,
		Backend:      loaded.Recommender.Backend(),
	}, Metadata{QueryTimeMS: elapsed.Milliseconds(), ModelVersion: loaded.Info.Version})
}

func (h *Handler) batchNotLoaded(w http.ResponseWriter, r *http.Request, rows []recommend.PredictRow) {
	code := recommend.KindModelUnavailable.Code()
	results := make([]recommend.BatchResult, len(rows))
	for i, row := range rows {
		results[i] = recommend.BatchResult{CustomerID: row.CustomerID, RecList: []recommend.RecItem{}}
	}
	metrics.RecordPrediction("", "unavailable", 0)
	respondJSON(w, r, http.StatusOK, batchResponse{
		Results: results,
		Count:   len(results),
		Error:   &code,
	}, Metadata{})
}
