// Package probe checks a deployed site over HTTP: the page must load and
// every static asset it references must be served.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/garyellow/medshop-deploy/internal/sliceutil"
)

// StaticPrefix is the URL path nginx serves collected assets under.
const StaticPrefix = "/static/"

// Asset is one static reference found on the page.
type Asset struct {
	URL    string
	Status int
	Err    error
}

// Report holds the outcome of a probe.
type Report struct {
	URL    string
	Status int
	Assets []Asset
}

// Failed returns the assets that were not served.
func (r *Report) Failed() []Asset {
	var failed []Asset
	for _, a := range r.Assets {
		if a.Err != nil {
			failed = append(failed, a)
		}
	}
	return failed
}

// Prober issues the probe requests.
type Prober struct {
	httpClient   *http.Client
	userAgent    string
	maxRetries   int
	initialDelay time.Duration
}

// New creates a Prober. Each request is bounded by timeout. The page request
// is retried on gateway errors while the application server comes up.
func New(timeout time.Duration, userAgent string) *Prober {
	return &Prober{
		httpClient:   &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		maxRetries:   4,
		initialDelay: 500 * time.Millisecond,
	}
}

// Probe fetches pageURL and every same-origin /static/ asset it references.
// The returned error joins every failure; the Report is returned either way
// once the page has loaded.
func (p *Prober) Probe(ctx context.Context, pageURL string) (*Report, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse probe url: %w", err)
	}

	report := &Report{URL: pageURL}
	var doc *goquery.Document
	err = retryWithBackoff(ctx, p.maxRetries, p.initialDelay, func() error {
		status, d, err := p.getDocument(ctx, pageURL)
		report.Status = status
		doc = d
		return err
	})
	if err != nil {
		return report, err
	}

	var errs []error
	for _, ref := range StaticRefs(doc, base) {
		asset := Asset{URL: ref}
		asset.Status, asset.Err = p.fetchAsset(ctx, ref)
		if asset.Err != nil {
			errs = append(errs, asset.Err)
		}
		report.Assets = append(report.Assets, asset)
	}
	return report, errors.Join(errs...)
}

// StaticRefs returns the de-duplicated absolute URLs of /static/ assets on
// doc that share base's origin, in document order.
func StaticRefs(doc *goquery.Document, base *url.URL) []string {
	var refs []string
	doc.Find("link[href], script[src], img[src]").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("href")
		if !ok {
			raw, _ = s.Attr("src")
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		u, err := base.Parse(raw)
		if err != nil {
			return
		}
		if u.Scheme != base.Scheme || u.Host != base.Host || !strings.HasPrefix(u.Path, StaticPrefix) {
			return
		}
		u.Fragment = ""
		refs = append(refs, u.String())
	})
	return sliceutil.Unique(refs)
}

func (p *Prober) getDocument(ctx context.Context, pageURL string) (int, *goquery.Document, error) {
	resp, err := p.do(ctx, pageURL)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(pageURL, resp.StatusCode); err != nil {
		return resp.StatusCode, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, permanent(fmt.Errorf("failed to parse HTML: %w", err))
	}
	return resp.StatusCode, doc, nil
}

// fetchAsset GETs an asset and discards its body.
func (p *Prober) fetchAsset(ctx context.Context, assetURL string) (int, error) {
	resp, err := p.do(ctx, assetURL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, checkStatus(assetURL, resp.StatusCode)
}

func (p *Prober) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", target, err)
	}
	return resp, nil
}

func checkStatus(target string, status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("server error for %s: status %d", target, status)
	default:
		return permanent(fmt.Errorf("unexpected status for %s: %d", target, status))
	}
}
