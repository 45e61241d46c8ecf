package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"linkgate/internal/models"
)

//go:embed templates/challenge.html
var templateFS embed.FS

// ParseChallengeTemplate parses the embedded challenge page.
func ParseChallengeTemplate() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/challenge.html")
}

// renderChallenge executes the page into a buffer so a template failure can
// still be answered with a clean error response.
func renderChallenge(t *template.Template, view *models.ChallengeView) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render challenge: %w", err)
	}
	return buf.Bytes(), nil
}
