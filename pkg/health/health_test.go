package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestLiveEndpoint_AllHealthy(t *testing.T) {
	c := NewChecker()
	c.AddLiveness("noop", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	c.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	c := NewChecker()
	c.AddLiveness("noop", func(context.Context) error { return nil })
	c.AddReadiness("db", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	c.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestReadyEndpoint_IncludesLivenessChecks(t *testing.T) {
	c := NewChecker()
	c.AddLiveness("broken", func(context.Context) error { return errors.New("stuck") })

	rec := httptest.NewRecorder()
	c.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
