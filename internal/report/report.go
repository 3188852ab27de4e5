package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"screenshot-service/internal/store"

	"golang.org/x/xerrors"
)

//go:embed templates/report.html
var templates embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"status": func(code *int) string {
		if code == nil {
			return "-"
		}
		return fmt.Sprint(*code)
	},
	"milliseconds": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.0f ms", *v)
	},
	"safeImage": func(encoded string) template.URL {
		return template.URL("data:image/png;base64," + encoded)
	},
}).ParseFS(templates, "templates/report.html"))

const DefaultTitle = "Screenshot Validation Report"

type Context struct {
	Title         string
	GeneratedAt   string
	FilterSummary string
	Statistics    store.Statistics
	Screenshots   []store.Screenshot
}

func NewContext(screenshots []store.Screenshot, filter store.Filter, statistics store.Statistics, now time.Time) Context {
	return Context{
		Title:         DefaultTitle,
		GeneratedAt:   now.UTC().Format("2006-01-02 15:04:05 UTC"),
		FilterSummary: Summarize(filter),
		Statistics:    statistics,
		Screenshots:   screenshots,
	}
}

// Summarize describes the filters a report was built with.
func Summarize(filter store.Filter) string {
	var parts []string
	if filter.URL != "" {
		parts = append(parts, fmt.Sprintf("URL contains %q", filter.URL))
	}
	if filter.Success != nil {
		if *filter.Success {
			parts = append(parts, "successful only")
		} else {
			parts = append(parts, "failed only")
		}
	}
	if filter.Start != nil {
		parts = append(parts, "from "+filter.Start.UTC().Format(time.RFC3339))
	}
	if filter.End != nil {
		parts = append(parts, "until "+filter.End.UTC().Format(time.RFC3339))
	}
	if len(parts) == 0 {
		return "All screenshots"
	}
	return strings.Join(parts, ", ")
}

func Render(w io.Writer, c Context) error {
	if err := reportTemplate.Execute(w, c); err != nil {
		return xerrors.Errorf("failed to render report: %w", err)
	}
	return nil
}
