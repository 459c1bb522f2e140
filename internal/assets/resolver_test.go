package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/knowwell/portal-api/pkg/errors"
	"github.com/knowwell/portal-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "assets")

func newTestStore(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Resolver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewStorageResolver(Config{BaseURL: srv.URL}, testMetrics)
}

func TestResolveReturnsVerifiedURL(t *testing.T) {
	srv, resolver := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	url, err := resolver.Resolve(context.Background(), "diagram.png")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/diagram.png", url)
}

func TestResolveEscapesPath(t *testing.T) {
	var seen string
	srv, resolver := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	})

	url, err := resolver.Resolve(context.Background(), "folder/my file.png")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/folder%2Fmy%20file.png", url)
	assert.Equal(t, "/folder%2Fmy%20file.png", seen)
}

func TestResolveMissingObject(t *testing.T) {
	_, resolver := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := resolver.Resolve(context.Background(), "gone.png")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestResolveServerError(t *testing.T) {
	_, resolver := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := resolver.Resolve(context.Background(), "whatever.png")
	require.Error(t, err)
}

func TestResolveCachesSuccesses(t *testing.T) {
	var hits int32
	_, resolver := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve(context.Background(), "cached.png")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	var hits int32
	_, resolver := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	_, err := resolver.Resolve(context.Background(), "flaky.png")
	require.Error(t, err)

	_, err = resolver.Resolve(context.Background(), "flaky.png")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
