package record

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cmu-study-buddy/course-crawler/internal/model"
)

const sectionRule = "--------------------------------------------------------------------------------"
const footerRule = "================================================================================"

var courseURLInsertPoint = regexp.MustCompile(`Course URL:.*?\n`)

// BuildUpdatedRecord is the pure text transform of the updater: it splices
// the categorized material sections into the record immediately after the
// Course URL line (or appends them when the line is missing) and adds the
// scrape metadata footer at the end. The operation is append-only: running
// it twice with the same result produces two summary blocks.
func BuildUpdatedRecord(content string, result *model.CrawlResult, now time.Time) string {
	var sections []string
	sections = append(sections, buildSection("BOOKS AND TEXTBOOKS:", result.Textbooks)...)
	sections = append(sections, "")
	sections = append(sections, buildSection("RECITATIONS:", result.Recitations)...)
	sections = append(sections, "")
	sections = append(sections, buildSection("HOMEWORKS AND ASSIGNMENTS:", result.Homeworks)...)
	sections = append(sections, "")

	block := "\n" + strings.Join(sections, "\n") + "\n"

	var updated string
	if loc := courseURLInsertPoint.FindStringIndex(content); loc != nil {
		updated = content[:loc[1]] + block + content[loc[1]:]
	} else {
		updated = content + block
	}

	updated += fmt.Sprintf("\n%s\n", footerRule)
	updated += fmt.Sprintf("Last Scraped: %s\n", now.Format(time.RFC3339))
	updated += fmt.Sprintf("Total Textbooks Found: %d\n", len(result.Textbooks))
	updated += fmt.Sprintf("Total Recitations Found: %d\n", len(result.Recitations))
	updated += fmt.Sprintf("Total Homeworks Found: %d\n", len(result.Homeworks))

	return updated
}

func buildSection(title string, links []model.ClassifiedLink) []string {
	section := []string{title, sectionRule}
	if len(links) == 0 {
		return append(section, "None found")
	}

	for _, link := range links {
		if link.LocalName != "" {
			section = append(section, "Local PDF: "+link.LocalName)
		}
		section = append(section, "URL: "+link.URL)
		if link.Text != "" {
			section = append(section, "Title: "+link.Text)
		}
		section = append(section, "")
	}

	return section
}
