package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	netUrl "net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/model"
	"github.com/cmu-study-buddy/course-crawler/internal/storage"
	"golang.org/x/time/rate"
)

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

type ArtifactDownloader interface {
	Download(url, courseCode string, category model.Category) (string, error)
}

// PDFDownloader persists binary course materials to the artifact store.
// An existing file with the same sanitized name short-circuits the download
// without re-verifying content, an accepted weak dedup.
type PDFDownloader struct {
	cfg     *config.ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	store   storage.ArtifactStore
}

func NewPDFDownloader(cfg *config.ScraperConfig, transport *http.Transport, limiter *rate.Limiter,
	store storage.ArtifactStore) *PDFDownloader {
	return &PDFDownloader{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter: limiter,
		store:   store,
	}
}

// Download fetches the artifact and returns its name in the store. A
// non-PDF response is not an error: it is logged at debug level and
// reported as nothing to download.
func (d *PDFDownloader) Download(url, courseCode string, category model.Category) (string, error) {
	filename := deriveFilename(url, courseCode, category)

	if d.store.Exists(filename) {
		slog.Debug("artifact already exists.", slog.String("filename", filename))
		return filename, nil
	}

	slog.Info("downloading.", slog.String("url", url), slog.String("filename", filename))
	if err := d.limiter.Wait(context.Background()); err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close the response body.", slog.String("err", err.Error()))
		}
	}()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("error status code: %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "pdf") && !strings.HasSuffix(url, ".pdf") {
		slog.Debug("skipping non-pdf response.", slog.String("url", url),
			slog.String("content_type", contentType))
		return "", nil
	}

	if err := d.store.Save(filename, resp.Body); err != nil {
		return "", err
	}
	slog.Info("downloaded.", slog.String("filename", filename))

	return filename, nil
}

// deriveFilename takes the basename of the URL path, synthesizing a
// {code}_{category}_{timestamp}.pdf name when the path has no usable one,
// and sanitizes the result to a safe character set.
func deriveFilename(url, courseCode string, category model.Category) string {
	var filename string
	if parsed, err := netUrl.Parse(url); err == nil {
		filename = path.Base(parsed.Path)
		if filename == "." || filename == "/" {
			filename = ""
		}
	}

	if filename == "" || !strings.Contains(filename, ".") {
		filename = fmt.Sprintf("%s_%s_%d.pdf", courseCode, category, time.Now().Unix())
	}

	filename = unsafeChars.ReplaceAllString(filename, "_")

	if strings.HasSuffix(string(category), "_pdf") && !strings.HasSuffix(filename, ".pdf") {
		filename += ".pdf"
	}

	return filename
}
