package geo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roniherschmann/linkpulse/internal/geo"
)

func TestIPAPI_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"Netherlands","regionName":"North Holland","city":"Amsterdam"}`))
	}))
	defer srv.Close()

	loc, err := geo.NewIPAPI(srv.URL+"/json", time.Second).Lookup(context.Background(), "81.2.69.142")
	require.NoError(t, err)
	assert.Equal(t, "/json/81.2.69.142", gotPath)
	assert.Equal(t, geo.Location{Country: "Netherlands", Region: "North Holland", City: "Amsterdam"}, loc)
}

func TestIPAPI_FailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	_, err := geo.NewIPAPI(srv.URL, time.Second).Lookup(context.Background(), "10.0.0.1")
	assert.ErrorContains(t, err, "private range")
}

func TestIPAPI_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := geo.NewIPAPI(srv.URL, time.Second).Lookup(context.Background(), "1.1.1.1")
	assert.ErrorContains(t, err, "status 429")
}

func TestIPAPI_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := geo.NewIPAPI(srv.URL, 50*time.Millisecond).Lookup(context.Background(), "1.1.1.1")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestIPAPI_EmptyIP(t *testing.T) {
	_, err := geo.NewIPAPI("http://unused.invalid", time.Second).Lookup(context.Background(), "")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	loc, err := geo.Noop{}.Lookup(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, geo.Location{}, loc)
}
