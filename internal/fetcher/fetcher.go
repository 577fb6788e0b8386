package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/gocolly/colly"
	"golang.org/x/time/rate"
)

// ErrAlreadyVisited is returned when the URL was fetched earlier in the
// same run. No network call is made.
var ErrAlreadyVisited = errors.New("url already fetched in this run")

type PageFetcher interface {
	Fetch(url string) (*goquery.Document, error)
}

// HTTPFetcher retrieves and parses course pages. All requests go through a
// shared rate limiter so the inter-request delay is global to the run, not
// per host.
type HTTPFetcher struct {
	cfg       *config.ScraperConfig
	transport *http.Transport
	limiter   *rate.Limiter
	visited   *VisitedSet
}

func NewHTTPFetcher(cfg *config.ScraperConfig, transport *http.Transport, limiter *rate.Limiter,
	visited *VisitedSet) *HTTPFetcher {
	return &HTTPFetcher{
		cfg:       cfg,
		transport: transport,
		limiter:   limiter,
		visited:   visited,
	}
}

// Fetch retrieves the page and parses it into a document. Transient HTTP
// errors (429, 5xx) are retried with exponential backoff; permanent errors
// fail after one attempt. The URL is added to the visited set only on
// success, so a failed candidate can be retried later in the run.
func (f *HTTPFetcher) Fetch(url string) (*goquery.Document, error) {
	if f.visited.Contains(url) {
		slog.Debug("skipping already fetched url.", slog.String("url", url))
		return nil, ErrAlreadyVisited
	}

	slog.Info("fetching.", slog.String("url", url))
	body, statusCode, err := f.request(url)
	for retry, delay := f.cfg.RetryAttempts, f.cfg.RetryDelay; isTransient(statusCode) &&
		retry > 0; retry, delay = retry-1, delay*2 {
		slog.Warn("transient error status code. retrying...", slog.Int("status_code", statusCode),
			slog.Int("attempts left", retry))
		time.Sleep(delay)
		body, statusCode, err = f.request(url)
	}
	if err != nil {
		slog.Error("fetch failed.", slog.String("url", url), slog.Int("status_code", statusCode),
			slog.String("err", err.Error()))
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to parse page.", slog.String("url", url), slog.String("err", err.Error()))
		return nil, err
	}
	f.visited.Add(url)

	return doc, nil
}

func (f *HTTPFetcher) request(url string) ([]byte, int, error) {
	if err := f.limiter.Wait(context.Background()); err != nil {
		return nil, 0, err
	}

	var (
		body       []byte
		statusCode int
	)
	c := colly.NewCollector()
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.RequestTimeout)
	c.UserAgent = f.cfg.UserAgent

	c.OnResponse(func(resp *colly.Response) {
		body = resp.Body
		statusCode = resp.StatusCode
	})
	c.OnError(func(resp *colly.Response, _ error) {
		statusCode = resp.StatusCode
	})

	err := c.Visit(url)
	if err != nil {
		return nil, statusCode, err
	}

	return body, statusCode, nil
}

func isTransient(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
