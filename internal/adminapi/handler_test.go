package adminapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/internal/config"
	"changeprop/internal/logger"
	"changeprop/internal/rulesource"
	"changeprop/pkg/health"
	"changeprop/pkg/rule"
	"changeprop/pkg/template"
)

type stubRegistryProvider struct {
	reg *rule.Registry
}

func (s stubRegistryProvider) Registry() *rule.Registry { return s.reg }

type stubBreakerLister struct {
	breakers map[string]string
}

func (s stubBreakerLister) Breakers() map[string]string { return s.breakers }

type stubWindow struct {
	size int
	err  error
}

func (s stubWindow) Seen(ctx context.Context, rule, requestID string) (bool, error) { return false, nil }
func (s stubWindow) Size(ctx context.Context, rule string) (int, error)             { return s.size, s.err }

type stubSourceErr struct{ err error }

func (s stubSourceErr) Load(ctx context.Context) (rule.Document, error) {
	return rule.Document{}, s.err
}

func newTestHandler(t *testing.T, reg *rule.Registry, breakers map[string]string, dedup stubWindow, manager *rulesource.Manager) *Handler {
	t.Helper()
	return NewHandler(
		stubRegistryProvider{reg: reg},
		stubBreakerLister{breakers: breakers},
		dedup,
		manager,
		health.NewCheckerRegistry(),
		logger.NopLogger(),
	)
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router, config.RateLimitConfig{Enabled: false})
	return router
}

func emptyRegistry() *rule.Registry {
	return rule.Build(nil)
}

func registryWithRule(t *testing.T, name string) *rule.Registry {
	t.Helper()
	r, err := rule.Compile(rule.Spec{Name: name, Topic: "purge-events"}, nil, func(es rule.ExecSpec) template.Template {
		return template.New(template.Spec{Method: es.Method, URI: es.URI})
	})
	require.NoError(t, err)
	return rule.Build([]*rule.Rule{r})
}

func TestHealthReportsHealthyWithNoCheckers(t *testing.T) {
	h := newTestHandler(t, emptyRegistry(), map[string]string{}, stubWindow{}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListRulesReturnsEveryCompiledRule(t *testing.T) {
	reg := registryWithRule(t, "purge-on-delete")
	h := newTestHandler(t, reg, map[string]string{}, stubWindow{}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Contains(t, w.Body.String(), `"name":"purge-on-delete"`)
}

func TestListCircuitBreakersReturnsSnapshot(t *testing.T) {
	h := newTestHandler(t, emptyRegistry(), map[string]string{"example.com": "closed"}, stubWindow{}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/circuit-breakers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "example.com")
	assert.Contains(t, w.Body.String(), "closed")
}

func TestDedupWindowReturnsSize(t *testing.T) {
	h := newTestHandler(t, registryWithRule(t, "purge-on-delete"), map[string]string{}, stubWindow{size: 3}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/rules/purge-on-delete/dedup-window", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"size":3`)
}

func TestDedupWindowReturns404ForUnknownRule(t *testing.T) {
	h := newTestHandler(t, emptyRegistry(), map[string]string{}, stubWindow{size: 3}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/rules/purge-on-delete/dedup-window", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDedupWindowReturns500OnRedisError(t *testing.T) {
	h := newTestHandler(t, registryWithRule(t, "purge-on-delete"), map[string]string{}, stubWindow{err: errors.New("redis down")}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/rules/purge-on-delete/dedup-window", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReloadRulesReturns200OnSuccess(t *testing.T) {
	manager := rulesource.NewManager(stubSourceErr{}, nil, logger.NopLogger())
	h := newTestHandler(t, emptyRegistry(), map[string]string{}, stubWindow{}, manager)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/rules/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReloadRulesReturns500OnLoadFailure(t *testing.T) {
	manager := rulesource.NewManager(stubSourceErr{err: errors.New("connection refused")}, nil, logger.NopLogger())
	h := newTestHandler(t, emptyRegistry(), map[string]string{}, stubWindow{}, manager)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/rules/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
