package api

import (
	"bytes"
	"html/template"
	"net/http"
)

// DefaultDocsTag is the tag group opened when the docs page loads.
const DefaultDocsTag = "Analytics"

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<title>{{.Title}} - Reference</title>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="description" content="{{.Description}}" />
	<style>body { margin: 0; }</style>
</head>
<body>
	<script id="api-reference" data-url="{{.SpecURL}}"></script>
	<script>
		document.getElementById('api-reference').dataset.configuration = JSON.stringify({
			theme: 'purple',
			layout: 'modern',
			darkMode: true,
			hideDownloadButton: false,
			tagsSorter: 'alpha',
			operationsSorter: 'method',
			defaultOpenAllTags: false,
			hiddenClients: ['c', 'clojure', 'objc', 'ocaml', 'r'],
			metaData: { title: {{.Title}}, description: {{.Description}} },
			servers: [{ url: window.location.origin, description: 'This warehouse' }]
		})
		if (window.location.hash === '') {
			window.location.hash = 'tag/' + {{.DefaultTag}}.toLowerCase()
		}
	</script>
	<script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`))

type docsData struct {
	Title       string
	Description string
	SpecURL     string
	DefaultTag  string
}

// ScalarHandler serves the Scalar reference page for the OpenAPI document at specURL.
// Values are escaped for their HTML or script context.
func ScalarHandler(specURL, title, description string) http.Handler {
	var buf bytes.Buffer
	err := docsPage.Execute(&buf, docsData{
		Title:       title,
		Description: description,
		SpecURL:     specURL,
		DefaultTag:  DefaultDocsTag,
	})
	page := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			http.Error(w, "docs unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	})
}
