// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"errors"
	"fmt"
	"strings"
)

// Request is a transport-agnostic recommendation request.
type Request struct {
	CustomerID string `json:"customer_id" validate:"required,max=256"`
	K          int    `json:"k" validate:"gte=0"`
}

// Response is the serving contract. Error is nil when OK is true.
type Response struct {
	CustomerID   string    `json:"customer_id"`
	RecList      []RecItem `json:"rec_list"`
	OK           bool      `json:"ok"`
	Error        *string   `json:"error"`
	ColdStart    bool      `json:"cold_start,omitempty"`
	ModelVersion int       `json:"model_version,omitempty"`
	Backend      Backend   `json:"backend,omitempty"`
}

// Outcome labels a response for metrics.
func (r *Response) Outcome() string {
	switch {
	case r.OK && r.ColdStart:
		return "cold_start"
	case r.OK:
		return "ok"
	case r.Error != nil && *r.Error == KindModelUnavailable.Code():
		return "unavailable"
	case r.Error != nil && strings.HasPrefix(*r.Error, KindInvalidArgument.Code()):
		return "invalid"
	default:
		return "error"
	}
}

// Serve answers req from the model in h. It never returns an error and
// never panics: a missing model, a bad k or a backend failure all become
// OK=false with Error set and an empty RecList.
func Serve(h *Handle, req Request) (resp Response) {
	resp = Response{CustomerID: req.CustomerID, RecList: []RecItem{}}

	var loaded *Loaded
	if h != nil {
		loaded = h.Current()
	}
	if loaded == nil {
		return failed(resp, KindModelUnavailable.Code())
	}
	resp.ModelVersion = loaded.Info.Version
	resp.Backend = loaded.Recommender.Backend()

	defer func() {
		if p := recover(); p != nil {
			resp = failed(Response{
				CustomerID:   req.CustomerID,
				RecList:      []RecItem{},
				ModelVersion: loaded.Info.Version,
				Backend:      loaded.Recommender.Backend(),
			}, fmt.Sprintf("internal_error: %v", p))
		}
	}()

	pred, err := loaded.Recommender.Predict(req.CustomerID, req.K)
	if err != nil {
		return failed(resp, errorText(err))
	}

	resp.OK = true
	resp.ColdStart = pred.ColdStart
	if pred.Items != nil {
		resp.RecList = pred.Items
	}
	return resp
}

func failed(resp Response, msg string) Response {
	resp.OK = false
	resp.Error = &msg
	resp.RecList = []RecItem{}
	resp.ColdStart = false
	return resp
}

// errorText renders err as "<code>: <detail>" so callers can match on the
// code prefix.
func errorText(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("%s: %v", KindInternal.Code(), err)
	}
	if e.Err == nil {
		return e.Kind.Code()
	}
	return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
}
