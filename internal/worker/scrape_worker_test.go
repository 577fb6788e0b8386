package worker

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/record"
	"github.com/cmu-study-buddy/course-crawler/internal/storage"
	"github.com/cmu-study-buddy/course-crawler/internal/telemetry"
)

func noopMetrics() *telemetry.AppMetrics {
	return &telemetry.AppMetrics{
		CoursesScrapedCnt:      func(int64) {},
		CoursesFailedCnt:       func(int64) {},
		ArtifactsDownloadedCnt: func(int64) {},
		CandidateExhaustedCnt:  func(int64) {},
	}
}

// newTestWorker serves a small course site from an httptest server and
// points the worker's data dir at a temp directory holding one record.
func newTestWorker(t *testing.T, courseURL func(srvURL string) string) (*ScrapeWorker, string, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/course/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="hw1.pdf">Homework 1</a>
			<a href="readings.html">Required Reading</a>
		</body></html>`))
	})
	mux.HandleFunc("/course/hw1.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 hw1"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dataDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dataDir, "courses"), 0o755); err != nil {
		t.Fatal(err)
	}
	recordText := "Course Code: 15-213\nCourse URL: " + courseURL(srv.URL) + "\n"
	if err := os.WriteFile(filepath.Join(dataDir, "courses", "15-213.txt"),
		[]byte(recordText), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewFSStore(filepath.Join(dataDir, "books"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DataDir: dataDir,
		ScraperSettings: &config.ScraperConfig{
			RequestTimeout: 5 * time.Second,
			RetryAttempts:  1,
			RetryDelay:     time.Millisecond,
			UserAgent:      "test-agent/1.0",
			DomainRoot:     srv.URL,
		},
	}

	return &ScrapeWorker{
		Cfg:           cfg,
		Records:       record.NewCourseStore(dataDir),
		Store:         store,
		Metrics:       noopMetrics(),
		HttpTransport: &http.Transport{},
	}, dataDir, srv
}

func TestRunAll(t *testing.T) {
	w, dataDir, _ := newTestWorker(t, func(srvURL string) string {
		return srvURL + "/course/"
	})

	summary := w.RunAll(0)
	if summary.Total != 1 || summary.Successful != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 total, 1 successful", summary)
	}
	if summary.TotalHomeworks != 1 {
		t.Errorf("TotalHomeworks = %d, want 1", summary.TotalHomeworks)
	}
	if summary.TotalTextbooks != 1 {
		t.Errorf("TotalTextbooks = %d, want 1", summary.TotalTextbooks)
	}

	if _, err := os.Stat(filepath.Join(dataDir, "books", "hw1.pdf")); err != nil {
		t.Errorf("downloaded artifact missing: %v", err)
	}

	updated, err := os.ReadFile(filepath.Join(dataDir, "courses", "15-213.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Local PDF: hw1.pdf", "HOMEWORKS AND ASSIGNMENTS:", "Last Scraped:"} {
		if !strings.Contains(string(updated), want) {
			t.Errorf("updated record missing %q", want)
		}
	}
}

func TestRunAllUnreachableCourseStillSucceeds(t *testing.T) {
	// Every candidate 404s. The course is recorded as scraped with empty
	// sections and per-candidate errors; the batch does not fail.
	w, dataDir, _ := newTestWorker(t, func(srvURL string) string {
		return srvURL + "/gone/"
	})

	summary := w.RunAll(0)
	if summary.Successful != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want the unreachable course counted successful", summary)
	}

	updated, err := os.ReadFile(filepath.Join(dataDir, "courses", "15-213.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(updated), "None found") {
		t.Error("unreachable course record missing empty sections")
	}
}

func TestRunOneUnknownCourse(t *testing.T) {
	w, _, _ := newTestWorker(t, func(srvURL string) string {
		return srvURL + "/course/"
	})

	if err := w.RunOne("15-999"); err == nil {
		t.Fatal("RunOne succeeded for an unknown course code")
	}
}

func TestRunAllLimit(t *testing.T) {
	w, dataDir, srv := newTestWorker(t, func(srvURL string) string {
		return srvURL + "/course/"
	})
	second := "Course Code: 15-445\nCourse URL: " + srv.URL + "/course/\n"
	if err := os.WriteFile(filepath.Join(dataDir, "courses", "15-445.txt"),
		[]byte(second), 0o644); err != nil {
		t.Fatal(err)
	}

	summary := w.RunAll(1)
	if summary.Total != 1 {
		t.Errorf("Total = %d, want 1 with limit 1", summary.Total)
	}
}
