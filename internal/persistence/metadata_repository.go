package persistence

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/cmu-study-buddy/course-crawler/internal/model"
)

type MetadataStorage interface {
	SaveCrawl(*model.CrawlResult)
}

// MetadataRepository keeps one row per course with the latest scrape
// outcome, for operator dashboards and the serving layer's freshness
// checks.
type MetadataRepository struct {
	db *sql.DB
}

func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

func (mr *MetadataRepository) SaveCrawl(result *model.CrawlResult) {
	_, err := mr.db.Exec(`INSERT INTO course_crawler.crawl_metadata
    (course_code, resolved_url, textbooks_found, recitations_found, homeworks_found, lectures_found,
     error_count, scraped_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (course_code) DO UPDATE
	SET resolved_url = EXCLUDED.resolved_url,
	    textbooks_found = EXCLUDED.textbooks_found,
	    recitations_found = EXCLUDED.recitations_found,
		homeworks_found = EXCLUDED.homeworks_found,
		lectures_found = EXCLUDED.lectures_found,
		error_count = EXCLUDED.error_count,
		scraped_at = EXCLUDED.scraped_at;`,
		result.CourseCode,
		result.ResolvedURL,
		len(result.Textbooks),
		len(result.Recitations),
		len(result.Homeworks),
		len(result.Lectures),
		len(result.Errors),
		time.Now().UTC())
	if err != nil {
		slog.Error("failed to save crawl metadata to database.", slog.String("err", err.Error()))
		return
	}
	slog.Debug("crawl metadata saved to db.", slog.String("course", result.CourseCode))
}
