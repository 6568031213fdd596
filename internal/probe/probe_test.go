package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head>
<link rel="stylesheet" href="/static/css/site.css">
<link rel="icon" href="/static/img/favicon.png#v2">
<script src="/static/js/cart.js"></script>
<script src="https://cdn.example.com/static/jquery.js"></script>
</head><body>
<img src="/media/products/aspirin.jpg">
<img src="static/img/logo.png">
<link rel="stylesheet" href="/static/css/site.css">
</body></html>`

func newTestProber() *Prober {
	p := New(2*time.Second, "medshop-deploy-test")
	p.initialDelay = time.Millisecond
	return p
}

func TestStaticRefs(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	base, err := url.Parse("http://203.0.113.10/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://203.0.113.10/static/css/site.css",
		"http://203.0.113.10/static/img/favicon.png",
		"http://203.0.113.10/static/js/cart.js",
		"http://203.0.113.10/static/img/logo.png",
	}, StaticRefs(doc, base))
}

func TestProbe_AllAssetsServed(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(page))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/static/") {
			_, _ = w.Write([]byte("asset"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	report, err := newTestProber().Probe(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, report.Status)
	assert.Len(t, report.Assets, 4)
	assert.Empty(t, report.Failed())
	assert.Equal(t, "medshop-deploy-test", ua.Load())
}

func TestProbe_MissingAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(page))
		case "/static/js/cart.js":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	report, err := newTestProber().Probe(context.Background(), srv.URL+"/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/static/js/cart.js")

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, http.StatusNotFound, failed[0].Status)
}

func TestProbe_RetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	report, err := newTestProber().Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, report.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProbe_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	report, err := newTestProber().Probe(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProbe_BadURL(t *testing.T) {
	_, err := newTestProber().Probe(context.Background(), "://nope")
	assert.Error(t, err)
}
