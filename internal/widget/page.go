package widget

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/smallbiznis/voiceassist/internal/config"
)

const embedScriptURL = "https://unpkg.com/@elevenlabs/convai-widget-embed"

const assistantPageTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}}</title>
  <style>
    :root {
      --primary: {{.PrimaryColor}};
      --secondary: {{.SecondaryColor}};
    }
    body {
      margin: 0;
      min-height: 100vh;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      background: {{if eq .ThemeType "dark"}}#111827{{else}}#f7f9fc{{end}};
      color: {{if eq .ThemeType "dark"}}#f9fafb{{else}}#1a1f36{{end}};
    }
    .hero {
      padding: 64px 24px;
      text-align: center;
      background: linear-gradient(135deg, var(--primary), var(--secondary));
      color: #ffffff;
    }
    .hero h1 { margin: 0 0 12px; font-size: 32px; }
    .hero p { margin: 0; font-size: 16px; opacity: 0.9; }
    .notice { max-width: 560px; margin: 32px auto; padding: 16px; border-radius: 6px; background: #fff4e5; color: #8a4b00; }
    .widget { position: fixed; z-index: 1000; }
    .widget.bottom-right { right: 24px; bottom: 24px; }
    .widget.bottom-left { left: 24px; bottom: 24px; }
    .widget.top-right { right: 24px; top: 24px; }
    .widget.top-left { left: 24px; top: 24px; }
  </style>
</head>
<body>
  <div class="hero">
    <h1>{{.Title}}</h1>
    <p>Ask about products, compare options and check out by voice.</p>
  </div>
  {{if .AgentID}}
  <div class="widget {{.Position}}">
    <elevenlabs-convai agent-id="{{.AgentID}}"></elevenlabs-convai>
  </div>
  <script src="{{.ScriptURL}}" async type="text/javascript"></script>
  {{else}}
  <div class="notice">The assistant is not configured yet.</div>
  {{end}}
</body>
</html>
`

var positionPattern = regexp.MustCompile(`^(top|bottom)-(left|right)$`)

type pageData struct {
	Title          string
	AgentID        string
	Position       string
	ThemeType      string
	PrimaryColor   template.CSS
	SecondaryColor template.CSS
	ScriptURL      string
}

// PageRenderer renders the standalone assistant page.
type PageRenderer struct {
	tpl            *template.Template
	defaultAgentID string
}

func NewPageRenderer(cfg config.Config) *PageRenderer {
	return &PageRenderer{
		tpl:            template.Must(template.New("assistant").Parse(assistantPageTemplate)),
		defaultAgentID: cfg.Widget.DefaultAgentID,
	}
}

func (r *PageRenderer) Render(settings config.WidgetSettings) (string, error) {
	defaults := config.DefaultWidgetSettings()
	client := ClientConfig(settings, r.defaultAgentID)

	data := pageData{
		Title:          "AI Shopping Assistant",
		AgentID:        client.AgentID,
		Position:       client.Position,
		ThemeType:      client.Theme.Type,
		PrimaryColor:   sanitizeColor(client.Theme.PrimaryColor, defaults.PrimaryColor),
		SecondaryColor: sanitizeColor(client.Theme.SecondaryColor, defaults.SecondaryColor),
		ScriptURL:      embedScriptURL,
	}
	if !positionPattern.MatchString(data.Position) {
		data.Position = defaults.Position
	}
	if !settings.Enabled {
		data.AgentID = ""
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func sanitizeColor(value, fallback string) template.CSS {
	trimmed := strings.TrimSpace(value)
	if hexColorPattern.MatchString(trimmed) {
		return template.CSS(trimmed)
	}
	return template.CSS(fallback)
}
