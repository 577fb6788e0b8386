package crawler

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/downloader"
	"github.com/cmu-study-buddy/course-crawler/internal/extractor"
	"github.com/cmu-study-buddy/course-crawler/internal/fetcher"
	"github.com/cmu-study-buddy/course-crawler/internal/model"
)

var courseCodePattern = regexp.MustCompile(`(\d{2})-(\d{3})`)

// subPageHints name the course pages worth a second fetch. A landing-page
// link whose href or text contains a hint is crawled for more materials.
var subPageHints = []string{"syllabus", "schedule", "assignments", "homework", "hw",
	"recitations", "lectures", "notes", "textbook", "books"}

// CourseCrawler drives the crawl of a single course site: candidate entry
// URLs, landing-page link classification, artifact downloads and the
// bounded sub-page fan-out.
type CourseCrawler struct {
	cfg        *config.ScraperConfig
	fetcher    fetcher.PageFetcher
	downloader downloader.ArtifactDownloader
}

func NewCourseCrawler(cfg *config.ScraperConfig, f fetcher.PageFetcher,
	d downloader.ArtifactDownloader) *CourseCrawler {
	return &CourseCrawler{
		cfg:        cfg,
		fetcher:    f,
		downloader: d,
	}
}

// CandidateURLs returns the entry URLs to try, in order: the recorded URL,
// then alternates derived from the numeric groups of the course code
// against the institutional domain root. For 15-213 that yields ~213/,
// ~15213/ and ~0213/.
func (c *CourseCrawler) CandidateURLs(code, recordedURL string) []string {
	urls := []string{recordedURL}

	m := courseCodePattern.FindStringSubmatch(code)
	if m != nil {
		dept, num := m[1], m[2]
		urls = append(urls,
			fmt.Sprintf("%s/~%s/", c.cfg.DomainRoot, num),
			fmt.Sprintf("%s/~%s%s/", c.cfg.DomainRoot, dept, num))
		if len(num) == 3 {
			urls = append(urls, fmt.Sprintf("%s/~0%s/", c.cfg.DomainRoot, num))
		}
	}

	return urls
}

// CrawlCourse crawls one course and aggregates its categorized materials.
// All failures degrade to entries in the result's Errors list; the caller
// decides what a failed course means for the batch.
func (c *CourseCrawler) CrawlCourse(entry *model.CourseEntry) *model.CrawlResult {
	slog.Info("scraping course.", slog.String("code", entry.Code), slog.String("url", entry.EntryURL))

	result := &model.CrawlResult{
		CourseCode:  entry.Code,
		ResolvedURL: entry.EntryURL,
	}

	candidates := c.CandidateURLs(entry.Code, entry.EntryURL)
	var (
		doc        *goquery.Document
		workingURL string
	)
	for _, url := range candidates {
		d, err := c.fetcher.Fetch(url)
		if err != nil {
			continue
		}
		doc = d
		workingURL = url
		result.ResolvedURL = url
		slog.Info("successfully accessed course page.", slog.String("url", url))
		break
	}

	if doc == nil {
		for _, url := range candidates {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch %s", url))
		}
		return result
	}

	links := extractor.ExtractLinks(doc, workingURL)
	for i := range links {
		c.processLandingLink(result, links[i])
	}

	c.crawlSubPages(result, links)

	slog.Info("course scrape finished.", slog.String("code", entry.Code),
		slog.Int("textbooks", len(result.Textbooks)),
		slog.Int("recitations", len(result.Recitations)),
		slog.Int("homeworks", len(result.Homeworks)))

	return result
}

// processLandingLink downloads PDF-typed links and routes the link into
// its bucket. Routing uses the pre-download category: a download marks the
// link itself with the _pdf suffix and its local artifact name, but does
// not change which bucket it lands in.
func (c *CourseCrawler) processLandingLink(result *model.CrawlResult, link model.ClassifiedLink) {
	category := link.Category
	urlLower := strings.ToLower(link.URL)

	if strings.HasSuffix(string(category), "_pdf") ||
		(strings.Contains(urlLower, ".pdf") && category == model.CategoryOther) {
		if category == model.CategoryOther {
			category = model.CategoryPDF
			link.Category = model.CategoryPDF
		}
		filename, err := c.downloader.Download(link.URL, result.CourseCode, category)
		if err != nil {
			slog.Error("download failed.", slog.String("url", link.URL), slog.String("err", err.Error()))
		} else if filename != "" {
			link.LocalName = filename
			link.Category = category.WithPDFSuffix()
		}
	}

	c.route(result, link, category)
}

// route applies the fixed bucket precedence from the landing-page pass.
func (c *CourseCrawler) route(result *model.CrawlResult, link model.ClassifiedLink, category model.Category) {
	textLower := strings.ToLower(link.Text)
	urlLower := strings.ToLower(link.URL)

	switch {
	case category == model.CategoryTextbook || category == model.CategoryTextbookPDF ||
		(strings.HasSuffix(string(category), "_pdf") && strings.Contains(textLower, "book")):
		result.Textbooks = append(result.Textbooks, link)
	case category == model.CategoryRecitation || category == model.CategoryRecitationPDF:
		result.Recitations = append(result.Recitations, link)
	case category == model.CategoryHomework || category == model.CategoryHomeworkPDF:
		result.Homeworks = append(result.Homeworks, link)
	case category == model.CategoryLecture || category == model.CategoryLecturePDF:
		result.Lectures = append(result.Lectures, link)
	case strings.HasSuffix(string(category), "_pdf") || strings.Contains(urlLower, ".pdf"):
		// Unclassified PDF. Re-scan text and URL together against the
		// keyword sets, homework first.
		combined := textLower + " " + urlLower
		switch {
		case containsAny(combined, extractor.HomeworkKeywords):
			result.Homeworks = append(result.Homeworks, link)
		case containsAny(combined, extractor.RecitationKeywords):
			result.Recitations = append(result.Recitations, link)
		case containsAny(combined, extractor.TextbookKeywords):
			result.Textbooks = append(result.Textbooks, link)
		case containsAny(combined, extractor.LectureKeywords):
			result.Lectures = append(result.Lectures, link)
		default:
			result.OtherLinks = append(result.OtherLinks, link)
		}
	default:
		result.OtherLinks = append(result.OtherLinks, link)
	}
}

// crawlSubPages fetches landing-page links that look like syllabus,
// schedule or materials pages and merges what they reference. Lecture
// links found on sub-pages are intentionally not merged, mirroring the
// established record format. The visited set makes repeat hint matches
// against the same sub-page cheap.
func (c *CourseCrawler) crawlSubPages(result *model.CrawlResult, links []model.ClassifiedLink) {
	for _, hint := range subPageHints {
		for _, link := range links {
			if !strings.Contains(strings.ToLower(link.Href), hint) &&
				!strings.Contains(strings.ToLower(link.Text), hint) {
				continue
			}

			subDoc, err := c.fetcher.Fetch(link.URL)
			if err != nil {
				continue
			}
			subLinks := extractor.ExtractLinks(subDoc, link.URL)
			slog.Debug("found links on sub-page.", slog.String("url", link.URL),
				slog.Int("count", len(subLinks)))

			for i := range subLinks {
				sub := subLinks[i]
				if strings.HasSuffix(string(sub.Category), "_pdf") {
					filename, err := c.downloader.Download(sub.URL, result.CourseCode, sub.Category)
					if err != nil {
						slog.Error("download failed.", slog.String("url", sub.URL),
							slog.String("err", err.Error()))
					} else if filename != "" {
						sub.LocalName = filename
					}
				}

				switch sub.Category {
				case model.CategoryTextbook, model.CategoryTextbookPDF:
					appendIfMissing(&result.Textbooks, sub)
				case model.CategoryRecitation, model.CategoryRecitationPDF:
					appendIfMissing(&result.Recitations, sub)
				case model.CategoryHomework, model.CategoryHomeworkPDF:
					appendIfMissing(&result.Homeworks, sub)
				}
			}
		}
	}
}

func appendIfMissing(bucket *[]model.ClassifiedLink, link model.ClassifiedLink) {
	for _, existing := range *bucket {
		if existing == link {
			return
		}
	}
	*bucket = append(*bucket, link)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
