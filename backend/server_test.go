package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/ellavondegurechaff/retaildash/backend/config"
	"github.com/ellavondegurechaff/retaildash/backend/handlers"
	"github.com/ellavondegurechaff/retaildash/dashboard"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader/loadertest"
	"github.com/ellavondegurechaff/retaildash/dashboard/store"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	*Server
	store *store.Store
}

func newTestServer(t *testing.T, token string, load bool) *testServer {
	t.Helper()
	return newTestServerWith(t, dashboard.WebConfig{AdminToken: token, ReloadRateLimit: 2}, false, load)
}

func newTestServerWith(t *testing.T, web dashboard.WebConfig, debug, load bool) *testServer {
	t.Helper()
	files, err := loadertest.Files()
	if err != nil {
		t.Fatalf("loadertest.Files() error = %v", err)
	}
	l := loader.New(loadertest.MemorySource(files), loader.DefaultFiles())
	st, err := store.New(l, views.NewRenderer(views.DefaultParams()), 16)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	if load {
		if err := st.Load(context.Background()); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}

	cfg := &dashboard.Config{Web: web, Data: dashboard.DataConfig{Source: dashboard.SourceLocal}}
	s := NewServer(&handlers.WebApp{
		Config:   config.NewWebAppConfig(cfg, debug),
		Store:    st,
		Taxonomy: l.Taxonomy(),
		Version:  "test",
		Commit:   "abc123",
	})
	t.Cleanup(s.Close)
	return &testServer{Server: s, store: st}
}

func (s *testServer) do(t *testing.T, method, target string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.App.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (s *testServer) api(t *testing.T, method, target string, header map[string]string) (int, envelope) {
	t.Helper()
	resp, body := s.do(t, method, target, header)
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, body, err)
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return v
}

type health struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Components  map[string]struct {
		Status  string         `json:"status"`
		Details map[string]any `json:"details"`
	} `json:"components"`
}

func TestHealth(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		s := newTestServer(t, "", true)
		status, env := s.api(t, http.MethodGet, "/health", nil)
		if status != http.StatusOK || !env.Success {
			t.Fatalf("status = %d, success = %v", status, env.Success)
		}
		h := decode[health](t, env.Data)
		if h.Status != "healthy" || h.Version != "test" || h.Environment != "production" {
			t.Errorf("health = %+v", h)
		}
		if gen := h.Components["dataset"].Details["generation"]; gen != float64(1) {
			t.Errorf("generation = %v, want 1", gen)
		}
		if src := h.Components["dataset"].Details["source"]; src != dashboard.SourceLocal {
			t.Errorf("source = %v, want %s", src, dashboard.SourceLocal)
		}
	})

	t.Run("debug", func(t *testing.T) {
		s := newTestServerWith(t, dashboard.WebConfig{}, true, true)
		_, env := s.api(t, http.MethodGet, "/health", nil)
		if h := decode[health](t, env.Data); h.Environment != "development" {
			t.Errorf("environment = %q, want development", h.Environment)
		}
	})

	t.Run("not loaded", func(t *testing.T) {
		s := newTestServer(t, "", false)
		status, env := s.api(t, http.MethodGet, "/health", nil)
		if status != http.StatusServiceUnavailable || env.Success {
			t.Errorf("status = %d, success = %v, want 503", status, env.Success)
		}
	})

	t.Run("database down", func(t *testing.T) {
		s := newTestServer(t, "", true)
		s.webApp.DB = fakePinger{err: errors.New("connection refused")}
		status, _ := s.api(t, http.MethodGet, "/health", nil)
		if status != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", status)
		}
	})
}

func TestNavigationAPI(t *testing.T) {
	s := newTestServer(t, "", true)
	_, env := s.api(t, http.MethodGet, "/api/views", nil)
	nav := decode[[]views.NavItem](t, env.Data)
	if !reflect.DeepEqual(nav, views.Navigation) {
		t.Errorf("navigation = %+v", nav)
	}
}

func TestViewAPI(t *testing.T) {
	s := newTestServer(t, "", true)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
		wantMetric string
	}{
		{name: "retention default", target: "/api/views/retention", wantStatus: 200, wantMetric: "50.0%"},
		{name: "retention by label case", target: "/api/views/RETENTION?cohort=2011-01&offset=1", wantStatus: 200, wantMetric: "0.0%"},
		{name: "retention offset zero", target: "/api/views/retention?offset=0", wantStatus: 200, wantMetric: "100.0%"},
		{name: "overview", target: "/api/views/overview?top=2", wantStatus: 200},
		{name: "unknown view", target: "/api/views/inventory", wantStatus: 404, wantCode: "VIEW_NOT_FOUND"},
		{name: "top out of range", target: "/api/views/overview?top=0", wantStatus: 400, wantCode: "INVALID_PARAMETERS"},
		{name: "bad cohort", target: "/api/views/retention?cohort=2010-13", wantStatus: 400, wantCode: "INVALID_PARAMETERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.api(t, http.MethodGet, tt.target, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.wantStatus, env.Error)
			}
			if tt.wantCode != "" {
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want %s", env.Error, tt.wantCode)
				}
				return
			}
			page := decode[struct {
				Generation uint64         `json:"generation"`
				Params     views.Params   `json:"params"`
				Metrics    []views.Metric `json:"metrics"`
				Header     []views.Metric `json:"header"`
			}](t, env.Data)
			if page.Generation != 1 || len(page.Header) != 5 {
				t.Errorf("page = %+v", page)
			}
			if tt.wantMetric != "" && (len(page.Metrics) == 0 || page.Metrics[0].Value != tt.wantMetric) {
				t.Errorf("metrics = %+v, want %s first", page.Metrics, tt.wantMetric)
			}
		})
	}
}

func TestRetentionAPI(t *testing.T) {
	s := newTestServer(t, "", true)

	t.Run("matrix", func(t *testing.T) {
		_, env := s.api(t, http.MethodGet, "/api/cohort/retention", nil)
		mx := decode[struct {
			Cohorts []string `json:"cohorts"`
			Sizes   []int    `json:"sizes"`
		}](t, env.Data)
		if !reflect.DeepEqual(mx.Cohorts, []string{"2010-12", "2011-01"}) || !reflect.DeepEqual(mx.Sizes, []int{2, 1}) {
			t.Errorf("matrix = %+v", mx)
		}
	})

	t.Run("value", func(t *testing.T) {
		status, env := s.api(t, http.MethodGet, "/api/cohort/retention/2010-12/3", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		v := decode[struct {
			Retention float64 `json:"retention"`
			Customers int     `json:"customers"`
			Size      int     `json:"cohort_size"`
		}](t, env.Data)
		if v.Retention != 0.5 || v.Customers != 1 || v.Size != 2 {
			t.Errorf("value = %+v", v)
		}
	})

	lookups := []struct {
		target     string
		wantStatus int
		wantCode   string
	}{
		{"/api/cohort/retention/2009-01/3", 404, "NOT_AVAILABLE"},
		{"/api/cohort/retention/2010-12/40", 404, "NOT_AVAILABLE"},
		{"/api/cohort/retention/december/3", 400, "INVALID_PARAMETERS"},
		{"/api/cohort/retention/2010-12/-1", 400, "INVALID_PARAMETERS"},
		{"/api/cohort/mean/40", 404, "NOT_AVAILABLE"},
	}
	for _, tt := range lookups {
		status, env := s.api(t, http.MethodGet, tt.target, nil)
		if status != tt.wantStatus || env.Error == nil || env.Error.Code != tt.wantCode {
			t.Errorf("GET %s = %d %+v, want %d %s", tt.target, status, env.Error, tt.wantStatus, tt.wantCode)
		}
	}

	t.Run("mean", func(t *testing.T) {
		_, env := s.api(t, http.MethodGet, "/api/cohort/mean/3", nil)
		m := decode[struct {
			Retention float64 `json:"retention"`
			Cohorts   int     `json:"cohorts"`
		}](t, env.Data)
		if m.Retention != 0.75 || m.Cohorts != 2 {
			t.Errorf("mean = %+v, want 0.75 over 2 cohorts", m)
		}
	})
}

func TestReferenceAPIs(t *testing.T) {
	s := newTestServer(t, "", true)

	_, env := s.api(t, http.MethodGet, "/api/segments/definitions", nil)
	defs := decode[loader.Table](t, env.Data)
	if len(defs.Rows) != 2 || defs.Columns[0] != "Segment" {
		t.Errorf("definitions = %+v", defs)
	}

	_, env = s.api(t, http.MethodGet, "/api/losses/unmapped", nil)
	unmapped := decode[struct {
		Fallback     string                `json:"fallback"`
		Descriptions []loader.UnmappedLoss `json:"descriptions"`
	}](t, env.Data)
	if unmapped.Fallback != loader.DefaultFallbackCategory {
		t.Errorf("fallback = %q", unmapped.Fallback)
	}
	if len(unmapped.Descriptions) != 1 || unmapped.Descriptions[0].Description != "supplier recall" {
		t.Errorf("descriptions = %+v, want supplier recall only", unmapped.Descriptions)
	}
}

func TestNotReady(t *testing.T) {
	s := newTestServer(t, "", false)
	status, env := s.api(t, http.MethodGet, "/api/views/overview", nil)
	if status != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "NOT_READY" {
		t.Errorf("status = %d, error = %+v, want 503 NOT_READY", status, env.Error)
	}
}

func TestViewShell(t *testing.T) {
	s := newTestServer(t, "", true)

	resp, body := s.do(t, http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	html := string(body)
	for _, want := range []string{"📊 Revenue Overview", `class="active"`, "chart-monthly-revenue", "window.__chartsReady = true", "💰 Loyalty Revenue"} {
		if !strings.Contains(html, want) {
			t.Errorf("GET / body missing %q", want)
		}
	}

	resp, body = s.do(t, http.MethodGet, "/views/returns", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "🔴 Customer Returns") {
		t.Errorf("GET /views/returns = %d", resp.StatusCode)
	}

	resp, body = s.do(t, http.MethodGet, "/views/inventory", nil)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), "unknown view") {
		t.Errorf("GET /views/inventory = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "🔄 Cohort Retention") {
		t.Error("error page should keep the navigation")
	}
	if !strings.Contains(string(body), "window.__chartsError = ") || strings.Contains(string(body), "window.__chartsReady = true") {
		t.Error("error page should flag the failure for snapshots instead of reporting ready")
	}
}

func TestReload(t *testing.T) {
	bearer := map[string]string{"Authorization": "Bearer s3cret"}

	t.Run("disabled without token", func(t *testing.T) {
		s := newTestServer(t, "", true)
		status, _ := s.api(t, http.MethodPost, "/admin/reload", bearer)
		if status != http.StatusForbidden {
			t.Errorf("status = %d, want 403", status)
		}
	})

	s := newTestServerWith(t, dashboard.WebConfig{AdminToken: "s3cret", ReloadRateLimit: 5}, false, true)

	auth := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusForbidden},
	}
	for _, tt := range auth {
		if status, _ := s.api(t, http.MethodPost, "/admin/reload", tt.header); status != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, status, tt.want)
		}
	}
	if s.store.Generation() != 1 {
		t.Fatalf("rejected requests reloaded the store")
	}

	status, env := s.api(t, http.MethodPost, "/admin/reload", bearer)
	if status != http.StatusOK {
		t.Fatalf("reload status = %d, error = %+v", status, env.Error)
	}
	res := decode[struct {
		Generation uint64         `json:"generation"`
		Rows       map[string]int `json:"rows"`
	}](t, env.Data)
	if res.Generation != 2 || res.Rows["transactions"] != len(loadertest.Rows) {
		t.Errorf("reload = %+v", res)
	}

	s.api(t, http.MethodPost, "/admin/reload", bearer)
	status, env = s.api(t, http.MethodPost, "/admin/reload", bearer)
	if status != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("sixth request = %d %+v, want 429", status, env.Error)
	}
}

func TestReload_TokenGuessesAreLimited(t *testing.T) {
	s := newTestServer(t, "s3cret", true)
	guess := map[string]string{"Authorization": "Bearer guess"}

	for i := 0; i < 2; i++ {
		if status, _ := s.api(t, http.MethodPost, "/admin/reload", guess); status != http.StatusForbidden {
			t.Fatalf("guess %d: status = %d, want 403", i, status)
		}
	}
	status, env := s.api(t, http.MethodPost, "/admin/reload", guess)
	if status != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("third guess = %d %+v, want 429", status, env.Error)
	}
	if s.store.Generation() != 1 {
		t.Error("limited requests reloaded the store")
	}
}

func TestReload_ForwardedFor(t *testing.T) {
	from := func(ip string) map[string]string {
		return map[string]string{"Authorization": "Bearer guess", "X-Forwarded-For": ip}
	}

	tests := []struct {
		name    string
		proxies []string
		// second is the status for a request from another forwarded address
		// once the first address used up its single request.
		second int
	}{
		{name: "untrusted peer", second: http.StatusTooManyRequests},
		// app.Test connects from 0.0.0.0.
		{name: "trusted peer", proxies: []string{"0.0.0.0"}, second: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			web := dashboard.WebConfig{AdminToken: "s3cret", ReloadRateLimit: 1, TrustedProxies: tt.proxies}
			if len(tt.proxies) > 0 {
				web.ProxyHeader = "X-Forwarded-For"
			}
			s := newTestServerWith(t, web, false, true)

			if status, _ := s.api(t, http.MethodPost, "/admin/reload", from("203.0.113.7")); status != http.StatusForbidden {
				t.Fatalf("first status = %d, want 403", status)
			}
			if status, _ := s.api(t, http.MethodPost, "/admin/reload", from("198.51.100.2")); status != tt.second {
				t.Errorf("second status = %d, want %d", status, tt.second)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, "", true)
	const id = "7f1b3e4c-2a5d-4c6e-9f8a-0b1c2d3e4f50"

	resp, _ := s.do(t, http.MethodGet, "/api/views", map[string]string{"X-Request-ID": id})
	if got := resp.Header.Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
	resp, _ = s.do(t, http.MethodGet, "/api/views", map[string]string{"X-Request-ID": "not-a-uuid"})
	if got := resp.Header.Get("X-Request-ID"); got == "not-a-uuid" || got == "" {
		t.Errorf("X-Request-ID = %q, want a generated id", got)
	}
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, "", true)
	status, env := s.api(t, http.MethodGet, "/api/nope", nil)
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("status = %d, error = %+v", status, env.Error)
	}
}
