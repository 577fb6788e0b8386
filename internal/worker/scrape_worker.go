package worker

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/broker"
	"github.com/cmu-study-buddy/course-crawler/internal/crawler"
	"github.com/cmu-study-buddy/course-crawler/internal/downloader"
	"github.com/cmu-study-buddy/course-crawler/internal/fetcher"
	"github.com/cmu-study-buddy/course-crawler/internal/model"
	"github.com/cmu-study-buddy/course-crawler/internal/persistence"
	"github.com/cmu-study-buddy/course-crawler/internal/record"
	"github.com/cmu-study-buddy/course-crawler/internal/storage"
	"github.com/cmu-study-buddy/course-crawler/internal/telemetry"
)

// ScrapeWorker runs the batch: load course records, crawl them one at a
// time and write results back. One course's failure never aborts the
// batch; failures are counted in the run summary instead. Db and Notifier
// may be nil when those integrations are disabled.
type ScrapeWorker struct {
	Cfg           *config.Config
	Records       *record.CourseStore
	Store         storage.ArtifactStore
	Db            persistence.MetadataStorage
	Notifier      *broker.ArtifactNotifier
	Metrics       *telemetry.AppMetrics
	HttpTransport *http.Transport
}

// RunAll crawls every loaded course, optionally capped at limit, and
// returns the run summary. It never returns an error: per-course failures
// are reported through the summary and the log.
func (w *ScrapeWorker) RunAll(limit int) *model.RunSummary {
	courses := w.Records.LoadCourses()
	if limit > 0 && len(courses) > limit {
		courses = courses[:limit]
	}
	slog.Info("starting scrape.", slog.Int("courses", len(courses)))

	summary := &model.RunSummary{Total: len(courses)}
	crawl := w.newCrawler()
	for i, entry := range courses {
		slog.Info("processing course.", slog.String("code", entry.Code),
			slog.String("progress", fmt.Sprintf("%d/%d", i+1, len(courses))))
		w.processCourse(crawl, entry, summary)
	}

	slog.Info("scraping summary.",
		slog.Int("total", summary.Total),
		slog.Int("successful", summary.Successful),
		slog.Int("failed", summary.Failed),
		slog.Int("total_textbooks", summary.TotalTextbooks),
		slog.Int("total_recitations", summary.TotalRecitations),
		slog.Int("total_homeworks", summary.TotalHomeworks))

	return summary
}

// RunOne crawls a single course by code.
func (w *ScrapeWorker) RunOne(code string) error {
	for _, entry := range w.Records.LoadCourses() {
		if entry.Code != code {
			continue
		}
		summary := &model.RunSummary{Total: 1}
		w.processCourse(w.newCrawler(), entry, summary)
		return nil
	}

	return fmt.Errorf("course %s not found", code)
}

func (w *ScrapeWorker) processCourse(crawl *crawler.CourseCrawler, entry *model.CourseEntry,
	summary *model.RunSummary) {
	result := w.crawlCourse(crawl, entry)
	if result == nil {
		summary.Failed++
		w.Metrics.CoursesFailedCnt(1)
		return
	}
	if len(result.Errors) > 0 {
		w.Metrics.CandidateExhaustedCnt(1)
	}

	if err := w.Records.Update(entry, result); err != nil {
		slog.Error("error updating course file.", slog.String("file", entry.FilePath),
			slog.String("err", err.Error()))
	}
	if w.Db != nil {
		w.Db.SaveCrawl(result)
	}

	var artifacts int64
	for _, bucket := range [][]model.ClassifiedLink{result.Textbooks, result.Recitations,
		result.Homeworks, result.Lectures, result.OtherLinks} {
		for _, link := range bucket {
			if link.LocalName == "" {
				continue
			}
			artifacts++
			if w.Notifier != nil {
				w.Notifier.SendArtifactEvent(result.CourseCode, link)
			}
		}
	}

	summary.Successful++
	summary.TotalTextbooks += len(result.Textbooks)
	summary.TotalRecitations += len(result.Recitations)
	summary.TotalHomeworks += len(result.Homeworks)
	w.Metrics.CoursesScrapedCnt(1)
	w.Metrics.ArtifactsDownloadedCnt(artifacts)
}

// crawlCourse is the failure isolation boundary: a panic while crawling
// one course is logged and reported as a nil result.
func (w *ScrapeWorker) crawlCourse(crawl *crawler.CourseCrawler, entry *model.CourseEntry) (result *model.CrawlResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("course crawl panicked.", slog.String("code", entry.Code),
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			result = nil
		}
	}()

	return crawl.CrawlCourse(entry)
}

// newCrawler assembles a crawler with a fresh visited set, scoping fetch
// dedup to one run.
func (w *ScrapeWorker) newCrawler() *crawler.CourseCrawler {
	limiter := fetcher.NewPacer(w.Cfg.ScraperSettings.RequestDelay)
	visited := fetcher.NewVisitedSet()
	f := fetcher.NewHTTPFetcher(w.Cfg.ScraperSettings, w.HttpTransport, limiter, visited)
	d := downloader.NewPDFDownloader(w.Cfg.ScraperSettings, w.HttpTransport, limiter, w.Store)

	return crawler.NewCourseCrawler(w.Cfg.ScraperSettings, f, d)
}
