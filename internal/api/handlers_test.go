// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shopsignal/internal/middleware"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/pipeline"
)

func testRecommender() recommend.Recommender {
	rows := []recommend.CooccurrenceRow{
		{Item: "apple", ItemRec: "bread", Score: 3},
		{Item: "bread", ItemRec: "apple", Score: 3},
		{Item: "apple", ItemRec: "cheese", Score: 1},
		{Item: "cheese", ItemRec: "apple", Score: 1},
		{Item: "bread", ItemRec: "dates", Score: 2},
		{Item: "dates", ItemRec: "bread", Score: 2},
	}
	owned := map[string][]string{
		"c1": {"apple"},
		"c2": {"bread"},
	}
	return recommend.NewCooccurrenceRecommender(recommend.NewCooccurrenceTable(rows), owned)
}

type fakeLoader struct {
	handle   *recommend.Handle
	err      error
	versions []int
}

func (f *fakeLoader) LoadProduction(context.Context) (*recommend.Loaded, bool, error) {
	if f.err != nil {
		return f.handle.Current(), false, f.err
	}
	f.handle.Swap(testRecommender(), recommend.ModelInfo{Name: "m", Version: 7, Stage: "Production"})
	return f.handle.Current(), true, nil
}

func (f *fakeLoader) LoadVersion(_ context.Context, version int) (*recommend.Loaded, error) {
	f.versions = append(f.versions, version)
	if f.err != nil {
		return nil, f.err
	}
	f.handle.Swap(testRecommender(), recommend.ModelInfo{Name: "m", Version: version})
	return f.handle.Current(), nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler *Handler
	loader  *fakeLoader
	http    http.Handler
}

func newTestServer(t *testing.T, loaded bool, db Pinger) *testServer {
	t.Helper()
	handle := recommend.NewHandle()
	if loaded {
		handle.Swap(testRecommender(), recommend.ModelInfo{Name: "m", Version: 3, Stage: "Production"})
	}
	loader := &fakeLoader{handle: handle}
	h := NewHandler(handle, loader, db, middleware.NewPerformanceMonitor(100, 0), Options{MaxK: 10, MaxBatchSize: 3})
	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitDisabled = true
	return &testServer{handler: h, loader: loader, http: NewRouter(h, mc).SetupChi()}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)
	return rec
}

func decodeServing(t *testing.T, rec *httptest.ResponseRecorder) recommend.Response {
	t.Helper()
	var resp recommend.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode serving response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", raw.Data, err)
		}
	}
	return raw.APIResponse
}

func TestRecommend_ModelNotLoaded(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/recommend", `{"customer_id":"c1","k":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeServing(t, rec)
	if resp.OK || resp.Error == nil || *resp.Error != "model_not_loaded" {
		t.Errorf("response = %+v, want ok=false model_not_loaded", resp)
	}
	if resp.CustomerID != "c1" || resp.RecList == nil || len(resp.RecList) != 0 {
		t.Errorf("response = %+v, want customer echoed and empty rec_list", resp)
	}
	if !strings.Contains(rec.Body.String(), `"rec_list":[]`) {
		t.Errorf("body %s does not encode an empty rec_list", rec.Body.String())
	}
}

func TestRecommend_Post(t *testing.T) {
	s := newTestServer(t, true, nil)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantOK    bool
		wantItems []string
		wantCold  bool
		wantError string
	}{
		{name: "known customer", body: `{"customer_id":"c1","k":5}`, wantCode: 200, wantOK: true, wantItems: []string{"bread", "cheese"}},
		{name: "default k", body: `{"customer_id":"c2"}`, wantCode: 200, wantOK: true, wantItems: []string{"apple", "dates"}},
		{name: "truncated", body: `{"customer_id":"c1","k":1}`, wantCode: 200, wantOK: true, wantItems: []string{"bread"}},
		{name: "k zero", body: `{"customer_id":"c1","k":0}`, wantCode: 200, wantOK: true, wantItems: []string{}},
		{name: "cold start", body: `{"customer_id":"stranger","k":5}`, wantCode: 200, wantOK: true, wantItems: []string{}, wantCold: true},
		{name: "negative k", body: `{"customer_id":"c1","k":-1}`, wantCode: 400, wantError: "invalid_argument"},
		{name: "k above max", body: `{"customer_id":"c1","k":11}`, wantCode: 400, wantError: "invalid_argument"},
		{name: "missing customer", body: `{"k":5}`, wantCode: 400, wantError: "invalid_argument"},
		{name: "malformed", body: `{"customer_id":`, wantCode: 400, wantError: "invalid_argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/recommend", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			resp := decodeServing(t, rec)
			if resp.OK != tt.wantOK {
				t.Errorf("ok = %v, want %v", resp.OK, tt.wantOK)
			}
			if tt.wantError != "" {
				if resp.Error == nil || !strings.HasPrefix(*resp.Error, tt.wantError) {
					t.Errorf("error = %v, want prefix %q", resp.Error, tt.wantError)
				}
				return
			}
			if resp.ColdStart != tt.wantCold {
				t.Errorf("cold_start = %v, want %v", resp.ColdStart, tt.wantCold)
			}
			got := make([]string, len(resp.RecList))
			for i, it := range resp.RecList {
				got[i] = it.ItemID
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.wantItems) {
				t.Errorf("items = %v, want %v", got, tt.wantItems)
			}
		})
	}
}

func TestRecommend_ScoresAndVersion(t *testing.T) {
	s := newTestServer(t, true, nil)

	resp := decodeServing(t, s.do(t, http.MethodPost, "/api/v1/recommend", `{"customer_id":"c1","k":2}`))
	if resp.ModelVersion != 3 || resp.Backend != recommend.BackendCooccurrence {
		t.Errorf("model = v%d %s, want v3 cooccurrence", resp.ModelVersion, resp.Backend)
	}
	if len(resp.RecList) != 2 || resp.RecList[0].Score != 3 || resp.RecList[1].Score != 1 {
		t.Errorf("rec_list = %+v, want scores 3 then 1", resp.RecList)
	}
}

func TestRecommendForCustomer(t *testing.T) {
	s := newTestServer(t, true, nil)

	resp := decodeServing(t, s.do(t, http.MethodGet, "/api/v1/recommend/c1?k=1", ""))
	if !resp.OK || len(resp.RecList) != 1 || resp.RecList[0].ItemID != "bread" {
		t.Errorf("GET form = %+v, want [bread]", resp)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/recommend/c1?k=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-integer k status = %d, want 400", rec.Code)
	}
	if resp := decodeServing(t, rec); resp.CustomerID != "c1" || resp.Error == nil {
		t.Errorf("non-integer k response = %+v", resp)
	}
}

func TestRecommendBatch(t *testing.T) {
	s := newTestServer(t, true, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/recommend/batch",
		`{"rows":[{"customer_id":"c2","k":1},{"customer_id":"stranger"},{"customer_id":"c1"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var data batchResponse
	env := decodeEnvelope(t, rec, &data)
	if env.Status != "success" || env.Metadata.ModelVersion != 3 {
		t.Errorf("envelope = %+v", env)
	}
	if data.Count != 3 || len(data.Results) != 3 {
		t.Fatalf("results = %+v, want 3 rows", data.Results)
	}
	if !data.OK || data.Error != nil {
		t.Errorf("ok=%v error=%v, want ok", data.OK, data.Error)
	}
	if data.Results[0].CustomerID != "c2" || len(data.Results[0].RecList) != 1 || data.Results[0].RecList[0].ItemID != "apple" {
		t.Errorf("row 0 = %+v, want c2 -> [apple]", data.Results[0])
	}
	if !data.Results[1].ColdStart || len(data.Results[1].RecList) != 0 {
		t.Errorf("row 1 = %+v, want cold start", data.Results[1])
	}
	if data.Results[2].CustomerID != "c1" || len(data.Results[2].RecList) != 2 {
		t.Errorf("row 2 = %+v, want c1 with default k", data.Results[2])
	}
}

func TestRecommendBatch_ModelNotLoaded(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/recommend/batch",
		`{"rows":[{"customer_id":"c1"},{"customer_id":"c2","k":1}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var data batchResponse
	decodeEnvelope(t, rec, &data)
	if data.OK || data.Error == nil || *data.Error != "model_not_loaded" {
		t.Errorf("ok=%v error=%v, want ok=false error=model_not_loaded", data.OK, data.Error)
	}
	if data.Count != 2 || len(data.Results) != 2 {
		t.Fatalf("results = %+v, want 2 rows", data.Results)
	}
	for i, want := range []string{"c1", "c2"} {
		row := data.Results[i]
		if row.CustomerID != want || row.RecList == nil || len(row.RecList) != 0 {
			t.Errorf("row %d = %+v, want %s with an empty rec_list", i, row, want)
		}
	}
	if !strings.Contains(rec.Body.String(), `"rec_list":[]`) {
		t.Errorf("body %s should carry empty rec_list arrays", rec.Body.String())
	}
}

func TestRecommendBatch_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		loaded   bool
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "malformed", loaded: true, body: `[`, wantCode: 400, wantErr: CodeInvalidJSON},
		{name: "no rows", loaded: true, body: `{"rows":[]}`, wantCode: 400, wantErr: CodeValidation},
		{name: "missing customer", loaded: true, body: `{"rows":[{"k":2}]}`, wantCode: 400, wantErr: CodeValidation},
		{name: "negative k", loaded: true, body: `{"rows":[{"customer_id":"c1","k":-2}]}`, wantCode: 400, wantErr: CodeValidation},
		{name: "k above max", loaded: true, body: `{"rows":[{"customer_id":"c1","k":50}]}`, wantCode: 400, wantErr: CodeValidation},
		{name: "too many rows", loaded: true, body: `{"rows":[{"customer_id":"a"},{"customer_id":"b"},{"customer_id":"c"},{"customer_id":"d"}]}`, wantCode: 400, wantErr: CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.loaded, nil)
			rec := s.do(t, http.MethodPost, "/api/v1/recommend/batch", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			env := decodeEnvelope(t, rec, nil)
			if env.Status != "error" || env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("envelope = %+v, want error %s", env, tt.wantErr)
			}
		})
	}
}

func TestModel(t *testing.T) {
	s := newTestServer(t, false, nil)
	if rec := s.do(t, http.MethodGet, "/api/v1/model", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no model status = %d, want 503", rec.Code)
	}

	s = newTestServer(t, true, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info recommend.ModelInfo
	decodeEnvelope(t, rec, &info)
	if info.Name != "m" || info.Version != 3 || info.Backend != recommend.BackendCooccurrence || info.Stats.Users != 2 {
		t.Errorf("model info = %+v", info)
	}
}

func TestReloadModel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		path     string
		wantCode int
	}{
		{name: "production", path: "/api/v1/model/reload", wantCode: 200},
		{name: "explicit version", path: "/api/v1/model/reload?version=4", wantCode: 200},
		{name: "bad version", path: "/api/v1/model/reload?version=x", wantCode: 400},
		{name: "no production", err: pipeline.ErrNoProductionModel, path: "/api/v1/model/reload", wantCode: 404},
		{name: "breaker open", err: fmt.Errorf("load m v2: %w", gobreaker.ErrOpenState), path: "/api/v1/model/reload", wantCode: 503},
		{name: "load failure", err: errors.New("checksum mismatch"), path: "/api/v1/model/reload", wantCode: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false, nil)
			s.loader.err = tt.err

			rec := s.do(t, http.MethodPost, tt.path, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var data reloadResponse
			decodeEnvelope(t, rec, &data)
			if !data.Swapped || data.Model == nil {
				t.Fatalf("reload = %+v, want swapped model", data)
			}
			if !s.handler.Handle().Ready() {
				t.Error("handle not ready after reload")
			}
		})
	}
}

func TestReloadModel_NoLoader(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, Options{})
	rec := httptest.NewRecorder()
	h.ReloadModel(rec, httptest.NewRequest(http.MethodPost, "/api/v1/model/reload", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		loaded     bool
		db         Pinger
		wantStatus string
		wantReady  int
	}{
		{name: "no model", loaded: false, wantStatus: "degraded", wantReady: 503},
		{name: "model without db", loaded: true, wantStatus: "ok", wantReady: 200},
		{name: "model with db", loaded: true, db: fakePinger{}, wantStatus: "ok", wantReady: 200},
		{name: "db down", loaded: true, db: fakePinger{err: errors.New("closed")}, wantStatus: "degraded", wantReady: 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.loaded, tt.db)

			rec := s.do(t, http.MethodGet, "/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("/health status = %d", rec.Code)
			}
			var status HealthStatus
			decodeEnvelope(t, rec, &status)
			if status.Status != tt.wantStatus || status.ModelLoaded != tt.loaded {
				t.Errorf("health = %+v, want %s", status, tt.wantStatus)
			}

			if rec := s.do(t, http.MethodGet, "/health/ready", ""); rec.Code != tt.wantReady {
				t.Errorf("/health/ready status = %d, want %d", rec.Code, tt.wantReady)
			}
			if rec := s.do(t, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
				t.Errorf("/health/live status = %d, want 200", rec.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, true, nil)
	s.do(t, http.MethodPost, "/api/v1/recommend", `{"customer_id":"c1"}`)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "recommend_predictions_total") {
		t.Error("metrics output lacks recommend_predictions_total")
	}
}

func TestLatencyStats(t *testing.T) {
	s := newTestServer(t, true, nil)
	s.do(t, http.MethodGet, "/api/v1/recommend/c1", "")
	s.do(t, http.MethodGet, "/api/v1/recommend/c2", "")

	var stats []middleware.RouteStats
	decodeEnvelope(t, s.do(t, http.MethodGet, "/api/v1/stats/latency", ""), &stats)

	var found bool
	for _, st := range stats {
		if st.Route == "GET /api/v1/recommend/{customerID}" {
			found = true
			if st.RequestCount != 2 {
				t.Errorf("request count = %d, want 2", st.RequestCount)
			}
		}
	}
	if !found {
		t.Errorf("stats = %+v, want the customer route", stats)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	s := newTestServer(t, true, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}
	if env := decodeEnvelope(t, rec, nil); env.Error == nil || env.Error.Code != CodeNotFound {
		t.Errorf("unknown route envelope = %+v", env)
	}

	if rec := s.do(t, http.MethodDelete, "/api/v1/model", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /api/v1/model status = %d, want 405", rec.Code)
	}
}

func TestRouter_RequestIDAndHeaders(t *testing.T) {
	s := newTestServer(t, true, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/model", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing on /api/v1")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, Options{})
	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitRequests = 2
	router := NewRouter(h, mc).SetupChi()

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", bytes.NewBufferString(`{"customer_id":"c1"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, Options{})
	mc := DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = []string{"https://shop.example.com"}
	router := NewRouter(h, mc).SetupChi()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommend", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\tc"); got != `a\x0ab\x09c` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
