package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/KathenZK/research-agent/internal/models"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

const emailDigestLimit = 10

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Research Agent Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #3370ff; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .opportunity { border-left: 4px solid #3370ff; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .opportunity-title { font-weight: bold; margin-bottom: 5px; }
        .opportunity-meta { color: #666; font-size: 0.9em; }
        .high { border-left-color: #107c10; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Research Agent Report</h1>
        <p>{{.Rubric}} rubric, generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Items analyzed:</strong> {{.TotalItems}}</p>
        <p><strong>Opportunities:</strong> {{len .Opportunities}}</p>
    </div>

    {{if .Opportunities}}
    <h2>Top Opportunities</h2>
    {{range $index, $opp := .Opportunities}}
        {{if lt $index 10}}
        <div class="opportunity {{if ge $opp.Score 85}}high{{end}}">
            <div class="opportunity-title">
                <a href="{{$opp.URL}}" target="_blank">{{$opp.Title}}</a>
            </div>
            <div class="opportunity-meta">
                {{$opp.Source | upper}} | Score: {{$opp.Score}}/100
                {{if $opp.Tags}} | {{join $opp.Tags ", "}}{{end}}
            </div>
            {{if $opp.Summary}}
            <p>{{$opp.Summary | truncate 300}}</p>
            {{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the research agent.</small></p>
</body>
</html>
`

var emailTmpl = template.Must(template.New("email").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"join":  strings.Join,
	"truncate": func(length int, s string) string {
		runes := []rune(s)
		if len(runes) <= length {
			return s
		}
		return string(runes[:length]) + "..."
	},
}).Parse(emailTemplate))

func buildEmailSubject(report *models.Report) string {
	return fmt.Sprintf("Research Agent Report - %s (%d opportunities)",
		report.GeneratedAt.Format("2006-01-02"), len(report.Opportunities))
}

func buildEmailHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	fmt.Fprintf(&text, "Research Agent Report - %s rubric\n", report.Rubric)
	fmt.Fprintf(&text, "Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	fmt.Fprintf(&text, "Items analyzed: %d\n", report.TotalItems)
	fmt.Fprintf(&text, "Opportunities: %d\n", len(report.Opportunities))

	if len(report.Opportunities) > 0 {
		text.WriteString("\nTOP OPPORTUNITIES\n")
		text.WriteString("=================\n")

		limit := emailDigestLimit
		if len(report.Opportunities) < limit {
			limit = len(report.Opportunities)
		}

		for i := 0; i < limit; i++ {
			opp := report.Opportunities[i]
			fmt.Fprintf(&text, "\n%d. [%s] %s (score %d)\n", i+1, strings.ToUpper(opp.Source), opp.Title, opp.Score)
			fmt.Fprintf(&text, "   URL: %s\n", opp.URL)
			if opp.Summary != "" {
				summary := []rune(opp.Summary)
				if len(summary) > 300 {
					summary = append(summary[:300], []rune("...")...)
				}
				fmt.Fprintf(&text, "   Summary: %s\n", string(summary))
			}
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the research agent.\n")

	return text.String()
}

func newEmailMessage(from, to string, report *models.Report) (*gomail.Message, error) {
	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return nil, fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", buildEmailSubject(report))
	m.SetBody("text/plain", buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	return m, nil
}
