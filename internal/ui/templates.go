package ui

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/validation"
)

//go:embed templates/*
var templateFS embed.FS

var templates = mustParseTemplates()

const unlabeledSemester = "Unlabeled"

var funcMap = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(validation.DateLayout)
	},
	"semesterLabel": semesterLabel,
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"semesterSelect": func(semesters []store.Semester, selected string) map[string]any {
		return map[string]any{"Semesters": semesters, "Selected": selected}
	},
}

// semesterLabel names a semester for display; notes and exams whose
// semester is unset or was deleted show as unlabeled.
func semesterLabel(name *string) string {
	if name == nil || strings.TrimSpace(*name) == "" {
		return unlabeledSemester
	}
	return *name
}

func mustParseTemplates() map[string]*template.Template {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}

	base := template.Must(template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html"))

	sets := make(map[string]*template.Template)
	for _, file := range files {
		if file == "templates/base.html" {
			continue
		}
		set := template.Must(base.Clone())
		template.Must(set.ParseFS(templateFS, file))
		sets[strings.TrimPrefix(file, "templates/")] = set
	}
	return sets
}
