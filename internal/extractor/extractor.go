package extractor

import (
	netUrl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cmu-study-buddy/course-crawler/internal/model"
)

// Keyword sets used to label discovered links. Ordered slices, not maps:
// classification rules scan them in a fixed order and tests enumerate them.
var (
	HomeworkKeywords = []string{"homework", "hw", "assignment", "assign", "problem set", "pset",
		"lab", "project", "exercise", "exercises"}
	RecitationKeywords = []string{"recitation", "rec", "tutorial", "section", "review"}
	TextbookKeywords   = []string{"textbook", "book", "required reading", "reading", "reference",
		"course book", "required text"}
	LectureKeywords = []string{"lecture", "lectures", "notes", "slides", "presentation", "class notes"}
)

// Classify maps a link to exactly one category. First matching rule wins:
//  1. URL with a .pdf extension is sub-classified by link text alone
//     (textbook > homework > recitation > lecture), falling back to pdf.
//  2. Homework, recitation, textbook, lecture keywords against text or href,
//     in that order.
//  3. Everything else is other.
//
// Matching is case-insensitive substring containment.
func Classify(text, href, url string) model.Category {
	textLower := strings.ToLower(text)
	hrefLower := strings.ToLower(href)
	urlLower := strings.ToLower(url)

	if strings.Contains(urlLower, ".pdf") {
		switch {
		case containsAny(textLower, TextbookKeywords):
			return model.CategoryTextbookPDF
		case containsAny(textLower, HomeworkKeywords):
			return model.CategoryHomeworkPDF
		case containsAny(textLower, RecitationKeywords):
			return model.CategoryRecitationPDF
		case containsAny(textLower, LectureKeywords):
			return model.CategoryLecturePDF
		default:
			return model.CategoryPDF
		}
	}

	switch {
	case containsAny(textLower, HomeworkKeywords) || containsAny(hrefLower, HomeworkKeywords):
		return model.CategoryHomework
	case containsAny(textLower, RecitationKeywords) || containsAny(hrefLower, RecitationKeywords):
		return model.CategoryRecitation
	case containsAny(textLower, TextbookKeywords) || containsAny(hrefLower, TextbookKeywords):
		return model.CategoryTextbook
	case containsAny(textLower, LectureKeywords) || containsAny(hrefLower, LectureKeywords):
		return model.CategoryLecture
	}

	return model.CategoryOther
}

// ExtractLinks collects every hyperlink-bearing element on the page,
// resolves hrefs against baseURL and classifies each link.
func ExtractLinks(doc *goquery.Document, baseURL string) []model.ClassifiedLink {
	base, err := netUrl.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []model.ClassifiedLink
	doc.Find("a[href], link[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := netUrl.Parse(href)
		if err != nil {
			return
		}
		fullURL := base.ResolveReference(ref).String()
		text := strings.TrimSpace(sel.Text())

		links = append(links, model.ClassifiedLink{
			URL:      fullURL,
			Text:     text,
			Href:     href,
			Category: Classify(text, href, fullURL),
		})
	})

	return links
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
