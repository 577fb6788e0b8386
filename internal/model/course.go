package model

import "strings"

// Category is the material label assigned to a discovered link.
type Category string

const (
	CategoryTextbook      Category = "textbook"
	CategoryTextbookPDF   Category = "textbook_pdf"
	CategoryHomework      Category = "homework"
	CategoryHomeworkPDF   Category = "homework_pdf"
	CategoryRecitation    Category = "recitation"
	CategoryRecitationPDF Category = "recitation_pdf"
	CategoryLecture       Category = "lecture"
	CategoryLecturePDF    Category = "lecture_pdf"
	CategoryPDF           Category = "pdf"
	CategoryOther         Category = "other"
)

func (c Category) String() string {
	return string(c)
}

// WithPDFSuffix appends the _pdf marker to a plain category. Already
// suffixed categories are returned unchanged.
func (c Category) WithPDFSuffix() Category {
	if strings.HasSuffix(string(c), "_pdf") {
		return c
	}
	return Category(string(c) + "_pdf")
}

// CourseEntry is one course record loaded from the data directory.
// Code is immutable and matches the DD-DDD pattern. RecordText holds the
// full backing file content; the updater appends to it and persists in place.
type CourseEntry struct {
	Code       string
	EntryURL   string
	FilePath   string
	RecordText string
}

// ClassifiedLink is a single outbound link discovered on a course page.
// LocalName is set only after a successful artifact download.
type ClassifiedLink struct {
	URL       string
	Text      string
	Href      string
	Category  Category
	LocalName string
}

// CrawlResult aggregates one course's crawl. Every link lands in exactly
// one of the five buckets.
type CrawlResult struct {
	CourseCode  string
	ResolvedURL string
	Textbooks   []ClassifiedLink
	Recitations []ClassifiedLink
	Homeworks   []ClassifiedLink
	Lectures    []ClassifiedLink
	OtherLinks  []ClassifiedLink
	Errors      []string
}

// RunSummary is the aggregate outcome of one batch run.
type RunSummary struct {
	Total            int
	Successful       int
	Failed           int
	TotalTextbooks   int
	TotalRecitations int
	TotalHomeworks   int
}

// ArtifactEvent is published to the downstream indexer for every artifact
// written to the content store.
type ArtifactEvent struct {
	CourseCode string `json:"course_code"`
	Category   string `json:"category"`
	Filename   string `json:"filename"`
	SourceURL  string `json:"source_url"`
}
