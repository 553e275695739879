package popup

import (
	_ "embed"
	"html/template"
	"strings"
)

//go:embed templates/loading.html
var loadingTemplateHTML string

//go:embed templates/error.html
var errorTemplateHTML string

var (
	loadingTemplate = template.Must(template.New("loading").Parse(loadingTemplateHTML))
	errorTemplate   = template.Must(template.New("error").Parse(errorTemplateHTML))
)

func loadingHTML(message string) string {
	if message == "" {
		message = "Loading…"
	}
	var sb strings.Builder
	_ = loadingTemplate.Execute(&sb, map[string]string{"Message": message})
	return sb.String()
}

func errorHTML(title, message string) string {
	if title == "" {
		title = "Error"
	}
	var sb strings.Builder
	_ = errorTemplate.Execute(&sb, map[string]string{"Title": title, "Message": message})
	return sb.String()
}
