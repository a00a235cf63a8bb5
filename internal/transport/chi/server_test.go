package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/page"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
	healthuc "github.com/kailas-cloud/scopedex/internal/usecase/health"
)

// --- Mocks ---

type fakeReader struct {
	subject string
	params  url.Values
	req     page.Request
	docs    []document.Document
	err     error
}

func (f *fakeReader) List(
	_ context.Context, subject, entityType string, params url.Values, req page.Request,
) (page.Response[document.Document], error) {
	f.subject, f.params, f.req = subject, params, req
	if f.err != nil {
		return page.Response[document.Document]{}, f.err
	}
	if err := req.Validate(); err != nil {
		return page.Response[document.Document]{}, err
	}
	if entityType != "brands" {
		return page.Response[document.Document]{}, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, entityType)
	}
	return page.NewResponse(f.docs, req), nil
}

func (f *fakeReader) Retrieve(_ context.Context, subject, _ string, id int64) (document.Document, error) {
	f.subject = subject
	if f.err != nil {
		return document.Document{}, f.err
	}
	for _, d := range f.docs {
		if d.ID() == id {
			return d, nil
		}
	}
	return document.Document{}, domain.ErrNotFound
}

type fakeWriter struct {
	values    map[string]any
	id        int64
	err       error
	deleted   int64
	reindexed string
}

func (f *fakeWriter) Create(_ context.Context, _, _ string, values map[string]any) (entity.Row, error) {
	f.values = values
	if f.err != nil {
		return entity.Row{}, f.err
	}
	return entity.Row{ID: 11, Values: map[string]any{"name": values["name"], "is_default": values["default"]}}, nil
}

func (f *fakeWriter) Update(_ context.Context, _, _ string, id int64, values map[string]any) (entity.Row, error) {
	f.id, f.values = id, values
	if f.err != nil {
		return entity.Row{}, f.err
	}
	return entity.Row{ID: id, Values: map[string]any{"name": values["name"]}}, nil
}

func (f *fakeWriter) Delete(_ context.Context, _, _ string, id int64) error {
	f.deleted = id
	return f.err
}

func (f *fakeWriter) Reindex(_ context.Context, entityType string) (int, error) {
	f.reindexed = entityType
	return 3, f.err
}

type fakeScopes struct{ unrestricted bool }

func (f fakeScopes) Get(_ context.Context, subject string) domscope.AccessScope {
	return domscope.AccessScope{SubjectID: subject, Unrestricted: f.unrestricted}
}

type fakeHealth struct{ report healthuc.Report }

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type env struct {
	reader *fakeReader
	writer *fakeWriter
	router http.Handler
}

func newEnv(t *testing.T, scopes fakeScopes, health fakeHealth) *env {
	t.Helper()
	catalog, err := entity.NewCatalog(entity.Builtin()...)
	if err != nil {
		t.Fatal(err)
	}
	e := &env{reader: &fakeReader{}, writer: &fakeWriter{}}
	srv := NewServer(catalog, e.reader, e.writer, scopes, health)

	r := chi.NewRouter()
	r.Use(BearerAuthMiddleware(map[string]string{"tok": "7"}, ""))
	srv.Routes(r)
	e.router = r
	return e
}

func (e *env) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestList_Envelope(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	e.reader.docs = []document.Document{
		document.New(2, map[string]any{"name": "b"}),
		document.New(1, map[string]any{"name": "a"}),
	}

	rr := e.do("GET", "/v1/brands?page=2&per_page=2&name__icontains=a&ordering=-name", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp struct {
		Response   []map[string]any `json:"response"`
		Pagination struct {
			Count    int  `json:"count"`
			PerPage  int  `json:"per_page"`
			Previous *int `json:"previous"`
			Next     *int `json:"next"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Response) != 2 || resp.Response[0]["id"] != float64(2) {
		t.Errorf("response = %v", resp.Response)
	}
	p := resp.Pagination
	if p.Count != 2 || p.PerPage != 2 || p.Previous == nil || *p.Previous != 1 || p.Next == nil || *p.Next != 3 {
		t.Errorf("pagination = %+v", p)
	}
	if e.reader.subject != "7" {
		t.Errorf("subject = %q, want 7", e.reader.subject)
	}
	if e.reader.params.Get("name__icontains") != "a" {
		t.Errorf("params = %v", e.reader.params)
	}
	if e.reader.req != (page.Request{Page: 2, PerPage: 2}) {
		t.Errorf("page request = %+v", e.reader.req)
	}
}

func TestList_DefaultPage(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	rr := e.do("GET", "/v1/brands", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if e.reader.req != (page.Request{Page: 1, PerPage: page.DefaultPerPage}) {
		t.Errorf("page request = %+v", e.reader.req)
	}
	if !strings.Contains(rr.Body.String(), `"response":[]`) {
		t.Errorf("empty page should encode an empty array: %s", rr.Body)
	}
}

func TestList_BadPagination(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	tests := []struct {
		target string
		code   string
	}{
		{"/v1/brands?page=abc", codeBadRequest},
		{"/v1/brands?page=0", codeValidationFailed},
		{"/v1/brands?per_page=1000", codeValidationFailed},
	}
	for _, tt := range tests {
		rr := e.do("GET", tt.target, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.target, rr.Code)
			continue
		}
		if got := decodeError(t, rr).Code; got != tt.code {
			t.Errorf("%s: code = %q, want %q", tt.target, got, tt.code)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: x", domain.ErrUnknownEntity), http.StatusNotFound, codeUnknownEntity},
		{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
		{fmt.Errorf("list: %w: pg down", domain.ErrSystemOfRecord), http.StatusServiceUnavailable, codeUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout},
		{errors.New("boom"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := newEnv(t, fakeScopes{}, fakeHealth{})
			e.reader.err = tt.err
			rr := e.do("GET", "/v1/brands", "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "pg down") || strings.Contains(resp.Message, "boom") {
				t.Errorf("message leaks internals: %q", resp.Message)
			}
		})
	}
}

func TestRetrieve(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	e.reader.docs = []document.Document{document.New(5, map[string]any{"name": "x"})}

	rr := e.do("GET", "/v1/brands/5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"id":5`) {
		t.Errorf("body = %s", rr.Body)
	}

	if rr := e.do("GET", "/v1/brands/6", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rr.Code)
	}
	for _, id := range []string{"abc", "0", "-1"} {
		if rr := e.do("GET", "/v1/brands/"+id, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("id %q: status = %d, want 400", id, rr.Code)
		}
	}
}

func TestCreate(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})

	rr := e.do("POST", "/v1/brands", `{"name":"Sea","default":true,"organization_id":3}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/brands/11" {
		t.Errorf("Location = %q", loc)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["id"] != float64(11) || body["default"] != true {
		t.Errorf("body = %v", body)
	}
	if e.writer.values["name"] != "Sea" {
		t.Errorf("values = %v", e.writer.values)
	}
}

func TestCreate_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"empty object", `{}`},
		{"array", `[1]`},
		{"id", `{"id":1}`},
		{"unknown field", `{"color":"red"}`},
		{"bool as string", `{"default":"yes"}`},
		{"number as string", `{"tax_rate":"high"}`},
		{"text as number", `{"name":5}`},
		{"bad time", `{"created_at":"yesterday"}`},
		{"negative reference", `{"organization_id":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, fakeScopes{}, fakeHealth{})
			rr := e.do("POST", "/v1/brands", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rr.Code, rr.Body)
			}
			if e.writer.values != nil {
				t.Error("writer called with invalid payload")
			}
		})
	}
}

func TestCreate_NullAndTimeAccepted(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	rr := e.do("POST", "/v1/brands", `{"name":"Sea","description":null,"created_at":"2026-01-02T03:04:05Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
}

func TestCreate_Conflict(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	e.writer.err = fmt.Errorf("create brands: %w", domain.ErrConflict)

	rr := e.do("POST", "/v1/brands", `{"name":"Sea"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestCreate_UnknownEntity(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	rr := e.do("POST", "/v1/unicorns", `{"name":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestUpdate(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	rr := e.do("PUT", "/v1/brands/4", `{"name":"New"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if e.writer.id != 4 {
		t.Errorf("id = %d, want 4", e.writer.id)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	if rr := e.do("DELETE", "/v1/brands/42", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if e.writer.deleted != 42 {
		t.Errorf("deleted = %d, want 42", e.writer.deleted)
	}

	e.writer.err = domain.ErrNotFound
	if rr := e.do("DELETE", "/v1/brands/43", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rr.Code)
	}
}

func TestReindex(t *testing.T) {
	e := newEnv(t, fakeScopes{unrestricted: true}, fakeHealth{})
	rr := e.do("POST", "/v1/brands/reindex", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp ReindexResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp != (ReindexResponse{Entity: "brands", Documents: 3}) {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReindex_RestrictedForbidden(t *testing.T) {
	e := newEnv(t, fakeScopes{}, fakeHealth{})
	rr := e.do("POST", "/v1/brands/reindex", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if e.writer.reindexed != "" {
		t.Error("reindex ran for a restricted subject")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			report := healthuc.Report{Status: tt.status, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentIndex: healthuc.CheckOK,
			}}
			e := newEnv(t, fakeScopes{}, fakeHealth{report: report})

			req := httptest.NewRequest("GET", "/health", http.NoBody)
			rr := httptest.NewRecorder()
			e.router.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != string(tt.status) || resp.Checks[healthuc.ComponentIndex] != "ok" {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}
