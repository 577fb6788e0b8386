package crawler

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/model"
)

type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(url string) (*goquery.Document, error) {
	f.fetched = append(f.fetched, url)
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

type fakeDownloader struct {
	calls []string
	fail  bool
}

func (d *fakeDownloader) Download(url, courseCode string, category model.Category) (string, error) {
	d.calls = append(d.calls, url)
	if d.fail {
		return "", errors.New("download refused")
	}
	return path.Base(url), nil
}

func (d *fakeDownloader) called(url string) bool {
	for _, c := range d.calls {
		if c == url {
			return true
		}
	}
	return false
}

func newTestCrawler(pages map[string]string) (*CourseCrawler, *fakeFetcher, *fakeDownloader) {
	f := &fakeFetcher{pages: pages}
	d := &fakeDownloader{}
	cfg := &config.ScraperConfig{DomainRoot: "https://www.cs.cmu.edu"}
	return NewCourseCrawler(cfg, f, d), f, d
}

func TestCandidateURLs(t *testing.T) {
	c, _, _ := newTestCrawler(nil)

	got := c.CandidateURLs("15-213", "https://www.cs.cmu.edu/~15213/")
	want := []string{
		"https://www.cs.cmu.edu/~15213/",
		"https://www.cs.cmu.edu/~213/",
		"https://www.cs.cmu.edu/~15213/",
		"https://www.cs.cmu.edu/~0213/",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CandidateURLs = %v, want %v", got, want)
	}
}

func TestCandidateURLsUnparsableCode(t *testing.T) {
	c, _, _ := newTestCrawler(nil)

	got := c.CandidateURLs("graduate-seminar", "https://www.cs.cmu.edu/~sem/")
	if len(got) != 1 || got[0] != "https://www.cs.cmu.edu/~sem/" {
		t.Errorf("CandidateURLs = %v, want only the recorded url", got)
	}
}

func TestCrawlCourseAllCandidatesFail(t *testing.T) {
	c, _, _ := newTestCrawler(nil)

	entry := &model.CourseEntry{Code: "15-213", EntryURL: "https://www.cs.cmu.edu/~15213/"}
	result := c.CrawlCourse(entry)

	if len(result.Errors) != 4 {
		t.Fatalf("got %d errors, want one per candidate (4): %v", len(result.Errors), result.Errors)
	}
	for i, url := range c.CandidateURLs(entry.Code, entry.EntryURL) {
		if want := "failed to fetch " + url; result.Errors[i] != want {
			t.Errorf("Errors[%d] = %q, want %q", i, result.Errors[i], want)
		}
	}
	if len(result.Textbooks)+len(result.Recitations)+len(result.Homeworks)+
		len(result.Lectures)+len(result.OtherLinks) != 0 {
		t.Error("unreachable course produced non-empty buckets")
	}
	if result.ResolvedURL != entry.EntryURL {
		t.Errorf("ResolvedURL = %q, want the recorded url", result.ResolvedURL)
	}
}

func TestCrawlCourseFallsBackToAlternate(t *testing.T) {
	alternate := "https://www.cs.cmu.edu/~213/"
	c, _, _ := newTestCrawler(map[string]string{
		alternate: `<html><body></body></html>`,
	})

	entry := &model.CourseEntry{Code: "15-213", EntryURL: "https://www.example.com/dead/"}
	result := c.CrawlCourse(entry)

	if result.ResolvedURL != alternate {
		t.Errorf("ResolvedURL = %q, want %q", result.ResolvedURL, alternate)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
}

func TestCrawlCourseRouting(t *testing.T) {
	base := "https://www.cs.cmu.edu/~15213/"
	landing := `<html><body>
		<a href="handouts/ps1.pdf">Problem Set 1</a>
		<a href="course-textbook.html">Required Text</a>
		<a href="guide.pdf">Study Guide</a>
		<a href="hw/p2.pdf">Writeup 2</a>
		<a href="staff.html">Staff</a>
	</body></html>`

	c, _, d := newTestCrawler(map[string]string{base: landing})
	result := c.CrawlCourse(&model.CourseEntry{Code: "15-213", EntryURL: base})

	if len(result.Homeworks) != 2 {
		t.Fatalf("got %d homeworks, want 2: %+v", len(result.Homeworks), result.Homeworks)
	}
	ps1 := result.Homeworks[0]
	if ps1.Category != model.CategoryHomeworkPDF {
		t.Errorf("ps1 category = %q, want homework_pdf", ps1.Category)
	}
	if ps1.LocalName != "ps1.pdf" {
		t.Errorf("ps1 LocalName = %q, want ps1.pdf", ps1.LocalName)
	}
	// "Writeup 2" carries no keyword in its text, but the re-scan over
	// text plus URL picks up "hw" from the path.
	writeup := result.Homeworks[1]
	if writeup.Category != model.CategoryPDF {
		t.Errorf("writeup category = %q, want pdf", writeup.Category)
	}
	if writeup.LocalName != "" {
		t.Errorf("writeup LocalName = %q, want empty (plain pdf links are not downloaded)", writeup.LocalName)
	}

	if len(result.Textbooks) != 1 || result.Textbooks[0].Text != "Required Text" {
		t.Errorf("textbooks = %+v, want only Required Text", result.Textbooks)
	}
	if result.Textbooks[0].LocalName != "" {
		t.Error("html textbook link was downloaded")
	}

	var otherTexts []string
	for _, link := range result.OtherLinks {
		otherTexts = append(otherTexts, link.Text)
	}
	if !reflect.DeepEqual(otherTexts, []string{"Study Guide", "Staff"}) {
		t.Errorf("otherLinks = %v, want [Study Guide Staff]", otherTexts)
	}

	if !d.called(base + "handouts/ps1.pdf") {
		t.Error("homework pdf was not downloaded")
	}
	if d.called(base+"guide.pdf") || d.called(base+"course-textbook.html") {
		t.Errorf("downloader called for non-downloadable links: %v", d.calls)
	}
}

func TestCrawlCourseDownloadFailureDegrades(t *testing.T) {
	base := "https://www.cs.cmu.edu/~15213/"
	landing := `<html><body><a href="ps1.pdf">Problem Set 1</a></body></html>`

	c, _, d := newTestCrawler(map[string]string{base: landing})
	d.fail = true
	result := c.CrawlCourse(&model.CourseEntry{Code: "15-213", EntryURL: base})

	if len(result.Errors) != 0 {
		t.Errorf("download failure surfaced as crawl error: %v", result.Errors)
	}
	if len(result.Homeworks) != 1 {
		t.Fatalf("got %d homeworks, want 1", len(result.Homeworks))
	}
	if result.Homeworks[0].LocalName != "" {
		t.Errorf("LocalName = %q, want empty after failed download", result.Homeworks[0].LocalName)
	}
}

func TestCrawlSubPages(t *testing.T) {
	base := "https://www.cs.cmu.edu/~15213/"
	schedule := base + "schedule.html"
	landing := `<html><body><a href="schedule.html">Schedule</a></body></html>`
	schedulePage := `<html><body>
		<a href="hw5.pdf">Homework 5</a>
		<a href="hw5.pdf">Homework 5</a>
		<a href="lec01.pdf">Lecture 1 slides</a>
	</body></html>`

	c, _, d := newTestCrawler(map[string]string{base: landing, schedule: schedulePage})
	result := c.CrawlCourse(&model.CourseEntry{Code: "15-213", EntryURL: base})

	if len(result.Homeworks) != 1 {
		t.Fatalf("got %d homeworks, want 1 (duplicates merged by value): %+v",
			len(result.Homeworks), result.Homeworks)
	}
	if result.Homeworks[0].LocalName != "hw5.pdf" {
		t.Errorf("sub-page homework LocalName = %q, want hw5.pdf", result.Homeworks[0].LocalName)
	}

	// Lecture material found on sub-pages is downloaded but stays out of
	// the lectures bucket.
	if len(result.Lectures) != 0 {
		t.Errorf("lectures = %+v, want empty", result.Lectures)
	}
	if !d.called(base + "lec01.pdf") {
		t.Error("sub-page lecture pdf was not downloaded")
	}

	if len(result.OtherLinks) != 1 || result.OtherLinks[0].Text != "Schedule" {
		t.Errorf("otherLinks = %+v, want only Schedule", result.OtherLinks)
	}
}
