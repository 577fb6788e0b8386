package record

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cmu-study-buddy/course-crawler/internal/model"
	"github.com/patrickmn/go-cache"
)

var (
	courseCodeLine = regexp.MustCompile(`Course Code:\s*(\d{2}-\d{3})`)
	courseURLLine  = regexp.MustCompile(`Course URL:\s*(https?://\S+)`)
	localPDFLine   = regexp.MustCompile(`Local PDF:\s*(\S+)`)
)

// CourseStore reads and writes the per-course text records under
// <dataDir>/courses. Parsed records are cached briefly for the lookup API
// the serving layer polls between scrape runs.
type CourseStore struct {
	coursesDir string
	recordTTL  *cache.Cache
}

func NewCourseStore(dataDir string) *CourseStore {
	return &CourseStore{
		coursesDir: filepath.Join(dataDir, "courses"),
		recordTTL:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

// LoadCourses reads every course record with a recognizable course code
// and URL. Malformed records are skipped with a logged error; a missing
// courses directory logs and yields an empty slice rather than failing
// the run.
func (s *CourseStore) LoadCourses() []*model.CourseEntry {
	files, err := filepath.Glob(filepath.Join(s.coursesDir, "*.txt"))
	if err != nil || len(files) == 0 {
		slog.Error("courses directory not found or empty.", slog.String("dir", s.coursesDir))
		return nil
	}

	var courses []*model.CourseEntry
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			slog.Error("error loading course file.", slog.String("file", file),
				slog.String("err", err.Error()))
			continue
		}

		codeMatch := courseCodeLine.FindStringSubmatch(string(content))
		if codeMatch == nil {
			slog.Error("course file has no course code. skipping.", slog.String("file", file))
			continue
		}

		urlMatch := courseURLLine.FindStringSubmatch(string(content))
		if urlMatch == nil {
			slog.Debug("course file has no url. skipping.", slog.String("file", file))
			continue
		}

		courses = append(courses, &model.CourseEntry{
			Code:       codeMatch[1],
			EntryURL:   urlMatch[1],
			FilePath:   file,
			RecordText: string(content),
		})
	}

	slog.Info("loaded courses with urls.", slog.Int("count", len(courses)))
	return courses
}

// Update folds the crawl result into the entry's record text and persists
// it in place.
func (s *CourseStore) Update(entry *model.CourseEntry, result *model.CrawlResult) error {
	entry.RecordText = BuildUpdatedRecord(entry.RecordText, result, time.Now())
	s.recordTTL.Delete(entry.Code)

	return os.WriteFile(entry.FilePath, []byte(entry.RecordText), 0o644)
}

// ArtifactsForCourse lists the local artifact filenames recorded for a
// course code. This is the lookup the serving layer uses to associate
// stored PDFs with a course.
func (s *CourseStore) ArtifactsForCourse(code string) []string {
	if cached, ok := s.recordTTL.Get(code); ok {
		return cached.([]string)
	}

	var names []string
	seen := make(map[string]bool)
	for _, entry := range s.LoadCourses() {
		if entry.Code != code {
			continue
		}
		for _, m := range localPDFLine.FindAllStringSubmatch(entry.RecordText, -1) {
			name := strings.TrimSpace(m[1])
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	s.recordTTL.Set(code, names, cache.DefaultExpiration)

	return names
}
