package export

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown       = goldmark.New(goldmark.WithExtensions(extension.GFM))
	mentionPattern = regexp.MustCompile(`<@([A-Za-z0-9_]+)>`)
)

type TranscriptData struct {
	WorkspaceName string
	ChannelName   string
	Topic         string
	GeneratedAt   time.Time
	MessageCount  int
	Days          []TranscriptDay
}

type TranscriptDay struct {
	Label    string
	Messages []TranscriptMessage
}

type TranscriptMessage struct {
	Author   string
	Time     string
	BodyHTML template.HTML
	Edited   bool
	IsReply  bool
}

// RenderMessageBody converts a message's Markdown to HTML. Mentions become
// @Name and raw HTML in the source is dropped by goldmark.
func RenderMessageBody(body string, names map[string]string) (template.HTML, error) {
	body = mentionPattern.ReplaceAllStringFunc(body, func(match string) string {
		id := mentionPattern.FindStringSubmatch(match)[1]
		if name, ok := names[id]; ok && name != "" {
			return "@" + name
		}
		return "@unknown"
	})

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

func RenderTranscriptHTML(data TranscriptData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var transcriptTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>#{{.ChannelName}} · {{.WorkspaceName}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #1d1c1d; }
    h1 { border-bottom: 2px solid #4a154b; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .day { margin-top: 2rem; font-weight: bold; border-bottom: 1px solid #ddd; }
    .message { margin: 0.75rem 0; page-break-inside: avoid; }
    .message.reply { margin-left: 2rem; border-left: 3px solid #ddd; padding-left: 0.75rem; }
    .author { font-weight: bold; }
    .time, .edited { color: #888; font-size: 0.85em; }
    .body p { margin: 0.25rem 0; }
    pre, code { background: #f5f5f5; border-radius: 3px; }
  </style>
</head>
<body>
  <h1>#{{.ChannelName}}</h1>
  <div class="meta">{{.WorkspaceName}}{{if .Topic}} · {{.Topic}}{{end}} · {{.MessageCount}} messages · exported {{.GeneratedAt.Format "Jan 2, 2006 15:04 MST"}}</div>
  {{range .Days}}
  <div class="day">{{.Label}}</div>
  {{range .Messages}}
  <div class="message{{if .IsReply}} reply{{end}}">
    <span class="author">{{.Author}}</span> <span class="time">{{.Time}}</span>{{if .Edited}} <span class="edited">(edited)</span>{{end}}
    <div class="body">{{.BodyHTML}}</div>
  </div>
  {{end}}
  {{else}}
  <p>No messages.</p>
  {{end}}
</body>
</html>`))
