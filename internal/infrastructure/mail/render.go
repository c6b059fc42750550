// Package mail renders and delivers the digest email.
package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/ports"
)

const digestHTML = `<div style="background:#f8fafc;padding:24px 0;">
  <table width="600" align="center" cellpadding="0" cellspacing="0" style="background:#ffffff;border:1px solid #e2e8f0;border-radius:12px;padding:0 24px 12px;font-family:ui-sans-serif,system-ui,-apple-system">
    <tr><td style="padding:20px 0 8px;">
      <h1 style="margin:0;color:#0f172a;font-size:20px;">{{.Title}}</h1>
      <p style="margin:6px 0 0;color:#64748b;font-size:14px;">{{.Intro}}</p>
    </td></tr>
    {{- range .Entries}}
    <tr>
      <td style="padding:12px 0;border-bottom:1px solid #eee;">
        <a href="{{.URL}}" style="font-size:16px;color:#0f172a;text-decoration:none;font-weight:600;">{{.Title}}</a>
        {{- if .Summary}}
        <p style="margin:6px 0 0;color:#334155;font-size:14px;line-height:1.7">{{.Summary}}</p>
        {{- end}}
      </td>
    </tr>
    {{- end}}
    <tr><td style="padding:18px 0 12px;color:#94a3b8;font-size:12px;border-top:1px solid #e2e8f0;">
      <p style="margin:0 0 6px;">&copy; {{.Year}} AI Autodrive Researcher</p>
      {{- if .UnsubscribeURL}}
      <a href="{{.UnsubscribeURL}}" style="color:#64748b;">{{.UnsubscribeLabel}}</a>
      {{- end}}
    </td></tr>
  </table>
</div>`

var digestTemplate = template.Must(template.New("digest").Parse(digestHTML))

type copyText struct {
	subject     string
	unsubscribe string
	intro       func(n int) string
}

var copies = map[domain.Language]copyText{
	domain.LangZH: {
		subject:     "每日精选 · 智能驾驶与车载大模型",
		unsubscribe: "退订邮件",
		intro: func(n int) string {
			if n == 2 {
				return "今天的两条精选"
			}
			return fmt.Sprintf("今天的 %d 条精选", n)
		},
	},
	domain.LangEN: {
		subject:     "Daily Digest · Autodrive & In-Car AI",
		unsubscribe: "Unsubscribe",
		intro:       func(n int) string { return fmt.Sprintf("Today's top %d", n) },
	},
}

type row struct {
	Title   string
	URL     string
	Summary string
}

type page struct {
	Title            string
	Intro            string
	Entries          []row
	Year             int
	UnsubscribeURL   string
	UnsubscribeLabel string
}

// Renderer builds localized digest emails.
type Renderer struct {
	now func() time.Time
}

var _ ports.DigestRenderer = (*Renderer)(nil)

// NewRenderer builds a Renderer; now supplies the footer year.
func NewRenderer(now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{now: now}
}

// Subject returns the localized subject line.
func Subject(lang domain.Language) string {
	return localized(lang).subject
}

// Render produces the email for one recipient language. Chinese readers get the
// Chinese summary, English readers the long English one; both fall back to the
// source summary.
func (r *Renderer) Render(lang domain.Language, entries []domain.DigestEntry, unsubscribeURL string) (domain.DigestMessage, error) {
	c := localized(lang)
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{Title: e.Title, URL: e.URL, Summary: pickSummary(lang, e)})
	}

	var buf bytes.Buffer
	err := digestTemplate.Execute(&buf, page{
		Title:            c.subject,
		Intro:            c.intro(len(rows)),
		Entries:          rows,
		Year:             r.now().Year(),
		UnsubscribeURL:   unsubscribeURL,
		UnsubscribeLabel: c.unsubscribe,
	})
	if err != nil {
		return domain.DigestMessage{}, fmt.Errorf("render digest: %w", err)
	}
	return domain.DigestMessage{Subject: c.subject, HTML: buf.String()}, nil
}

// PlainText renders the same entries for chat channels.
func (r *Renderer) PlainText(lang domain.Language, entries []domain.DigestEntry) string {
	var b strings.Builder
	b.WriteString(localized(lang).subject)
	b.WriteString("\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s\n%s\n", e.Title, e.URL)
		if s := pickSummary(lang, e); s != "" {
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func pickSummary(lang domain.Language, e domain.DigestEntry) string {
	switch lang {
	case domain.LangZH:
		if e.SummaryZh != "" {
			return e.SummaryZh
		}
	case domain.LangEN:
		if e.SummaryEn != "" {
			return e.SummaryEn
		}
	}
	return e.Summary
}

func localized(lang domain.Language) copyText {
	if c, ok := copies[lang]; ok {
		return c
	}
	return copies[domain.LangEN]
}
