// Package chi exposes list, retrieve and write endpoints for every catalogued entity type.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/page"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
	"github.com/kailas-cloud/scopedex/internal/logger"
	healthuc "github.com/kailas-cloud/scopedex/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Catalog resolves entity types.
type Catalog interface {
	Get(name string) (*entity.Descriptor, error)
}

// Reader serves list and retrieve.
type Reader interface {
	List(
		ctx context.Context, subject, entityType string, params url.Values, req page.Request,
	) (page.Response[document.Document], error)
	Retrieve(ctx context.Context, subject, entityType string, id int64) (document.Document, error)
}

// Writer serves create, update, delete and reindex.
type Writer interface {
	Create(ctx context.Context, subject, entityType string, values map[string]any) (entity.Row, error)
	Update(ctx context.Context, subject, entityType string, id int64, values map[string]any) (entity.Row, error)
	Delete(ctx context.Context, subject, entityType string, id int64) error
	Reindex(ctx context.Context, entityType string) (int, error)
}

// Scopes resolves a subject's access scope.
type Scopes interface {
	Get(ctx context.Context, subject string) domscope.AccessScope
}

// HealthChecker reports backing store health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP surface.
type Server struct {
	catalog Catalog
	reader  Reader
	writer  Writer
	scopes  Scopes
	health  HealthChecker
	payload *payloadValidator
}

// NewServer creates an HTTP API server.
func NewServer(catalog Catalog, reader Reader, writer Writer, scopes Scopes, health HealthChecker) *Server {
	return &Server{
		catalog: catalog,
		reader:  reader,
		writer:  writer,
		scopes:  scopes,
		health:  health,
		payload: newPayloadValidator(),
	}
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/{entity}", func(r chi.Router) {
		r.Get("/", s.List)
		r.Post("/", s.Create)
		r.Post("/reindex", s.Reindex)
		r.Get("/{id}", s.Retrieve)
		r.Put("/{id}", s.Update)
		r.Delete("/{id}", s.Delete)
	})
}

// Pagination is the list envelope's paging block.
type Pagination struct {
	Count    int  `json:"count"`
	PerPage  int  `json:"per_page"`
	Previous *int `json:"previous"`
	Next     *int `json:"next"`
}

// ListResponse is the list envelope.
type ListResponse struct {
	Response   []document.Document `json:"response"`
	Pagination Pagination          `json:"pagination"`
}

// List handles GET /v1/{entity}.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var pageNum, perPage *int
	if err := runtime.BindQueryParameter("form", true, false, query.ParamPage, params, &pageNum); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("invalid %s: %v", query.ParamPage, err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, query.ParamPerPage, params, &perPage); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("invalid %s: %v", query.ParamPerPage, err))
		return
	}
	req := page.Request{Page: 1, PerPage: page.DefaultPerPage}
	if pageNum != nil {
		req.Page = *pageNum
	}
	if perPage != nil {
		req.PerPage = *perPage
	}

	resp, err := s.reader.List(r.Context(), SubjectFromContext(r.Context()), chi.URLParam(r, "entity"), params, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Response: resp.Items,
		Pagination: Pagination{
			Count:    resp.Count,
			PerPage:  resp.PerPage,
			Previous: resp.Previous,
			Next:     resp.Next,
		},
	})
}

// Retrieve handles GET /v1/{entity}/{id}.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	doc, err := s.reader.Retrieve(r.Context(), SubjectFromContext(r.Context()), chi.URLParam(r, "entity"), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Create handles POST /v1/{entity}.
func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	desc, values, ok := s.decodeWrite(w, r)
	if !ok {
		return
	}
	row, err := s.writer.Create(r.Context(), SubjectFromContext(r.Context()), desc.Name, values)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/%s/%d", desc.Name, row.ID))
	writeJSON(w, http.StatusCreated, document.Project(desc, row))
}

// Update handles PUT /v1/{entity}/{id}.
func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	desc, values, ok := s.decodeWrite(w, r)
	if !ok {
		return
	}
	row, err := s.writer.Update(r.Context(), SubjectFromContext(r.Context()), desc.Name, id, values)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, document.Project(desc, row))
}

// Delete handles DELETE /v1/{entity}/{id}.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	if err := s.writer.Delete(r.Context(), SubjectFromContext(r.Context()), chi.URLParam(r, "entity"), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexResponse reports a completed rebuild.
type ReindexResponse struct {
	Entity    string `json:"entity"`
	Documents int    `json:"documents"`
}

// Reindex handles POST /v1/{entity}/reindex. Only unrestricted subjects may rebuild an index.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	desc, err := s.catalog.Get(chi.URLParam(r, "entity"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	subject := SubjectFromContext(r.Context())
	if !s.scopes.Get(r.Context(), subject).Unrestricted {
		handleDomainError(w, r, fmt.Errorf("%w: reindex requires an unrestricted subject", domain.ErrForbidden))
		return
	}

	n, err := s.writer.Reindex(r.Context(), desc.Name)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("reindex requested",
		zap.String("entity", desc.Name), zap.String("subject", subject), zap.Int("documents", n))
	writeJSON(w, http.StatusOK, ReindexResponse{Entity: desc.Name, Documents: n})
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeWrite(w http.ResponseWriter, r *http.Request) (*entity.Descriptor, map[string]any, bool) {
	desc, err := s.catalog.Get(chi.URLParam(r, "entity"))
	if err != nil {
		handleDomainError(w, r, err)
		return nil, nil, false
	}

	var values map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return nil, nil, false
	}
	if err := s.payload.Validate(desc, values); err != nil {
		handleDomainError(w, r, err)
		return nil, nil, false
	}
	return desc, values, true
}

func bindID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err == nil && id <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid id: "+err.Error())
		return 0, false
	}
	return id, true
}
