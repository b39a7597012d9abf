package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"auction-monitor/pkg/logger"
)

func newRouter(called *bool) *mux.Router {
	router := mux.NewRouter()
	router.Use(CORSWithLogging(logger.NewNop()))
	router.HandleFunc("/auction-updates/{auctionId}", func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet, http.MethodOptions)
	return router
}

func TestCORSPreflight(t *testing.T) {
	called := false
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/auction-updates/1", nil)
	req.Header.Set("Origin", "http://example.test")

	newRouter(&called).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}

func TestCORSPassesThrough(t *testing.T) {
	called := false
	rec := httptest.NewRecorder()

	newRouter(&called).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auction-updates/1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, called)
}
