package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ToffenYT/varsly/pkg/models"
)

const (
	missingDeadline = "Ikke oppgitt"
	missingURL      = "#"
)

type item struct {
	Keyword      string
	Title        string
	Organization string
	Deadline     string
	URL          template.URL
}

func itemFromAlert(a models.Alert) item {
	return item{
		Keyword:      a.MatchedKeyword,
		Title:        a.NoticeTitle,
		Organization: a.NoticeOrganization,
		Deadline:     models.Deref(a.NoticeDeadline, missingDeadline),
		URL:          safeURL(models.Deref(a.NoticeURL, missingURL)),
	}
}

// safeURL keeps http(s) and relative links, drops anything else to "#"
func safeURL(u string) template.URL {
	if u == missingURL || hasScheme(u, "http://") || hasScheme(u, "https://") {
		return template.URL(u)
	}
	return template.URL(missingURL)
}

func hasScheme(u, scheme string) bool {
	return len(u) >= len(scheme) && bytes.EqualFold([]byte(u[:len(scheme)]), []byte(scheme))
}

type footer struct {
	UnsubscribeURL template.URL
	SettingsURL    template.URL
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;font-family:system-ui,-apple-system,sans-serif;background:#f4f4f5;padding:24px;">
  <div style="max-width:560px;margin:0 auto;background:#fff;border-radius:12px;border:1px solid #e4e4e7;overflow:hidden;">`

const layoutFoot = `
      <div style="margin-top:24px;padding-top:16px;border-top:1px solid #e4e4e7;text-align:center;">
        <p style="font-size:12px;color:#71717a;margin:0;">
          {{block "reason" .}}{{end}}
          <a href="{{.Footer.UnsubscribeURL}}" style="color:#3b82f6;">Meld av varsling</a>
          &nbsp;&middot;&nbsp;
          <a href="{{.Footer.SettingsURL}}" style="color:#3b82f6;">Administrer innstillinger</a>
        </p>
      </div>
    </div>
  </div>
</body>
</html>
`

var alertTmpl = template.Must(template.New("alert").Parse(layoutHead + `
    <div style="padding:24px;border-bottom:1px solid #e4e4e7;">
      <h2 style="margin:0;font-size:18px;color:#18181b;">Nytt anbud funnet for søkeordet: "{{.Item.Keyword}}"</h2>
    </div>
    <div style="padding:24px;">
      <p style="color:#71717a;margin:0 0 24px 0;">Hei! Vi har funnet et nytt anbud som matcher dine søkekriterier:</p>
      <div style="background:#f4f4f5;border-radius:8px;padding:20px;margin-bottom:24px;border:1px solid #e4e4e7;">
        <h3 style="margin:0 0 12px 0;font-size:16px;color:#18181b;line-height:1.4;">{{.Item.Title}}</h3>
        <div style="font-size:14px;">
          <div style="margin-bottom:8px;"><span style="color:#71717a;">Utlyser:</span> <span style="color:#18181b;font-weight:500;">{{.Item.Organization}}</span></div>
          <div><span style="color:#71717a;">Frist:</span> <span style="color:#b91c1c;font-weight:500;">{{.Item.Deadline}}</span></div>
        </div>
      </div>
      <a href="{{.Item.URL}}" style="display:block;background:#2563eb;color:#fff;text-align:center;padding:16px;border-radius:8px;font-weight:500;text-decoration:none;font-size:16px;">Se detaljer og dokumenter</a>` +
	`{{define "reason"}}Du mottar dette varselet fordi du abonnerer på søkeordet "{{.Item.Keyword}}".<br/>{{end}}` +
	layoutFoot))

var digestTmpl = template.Must(template.New("digest").Parse(layoutHead + `
    <div style="padding:24px;border-bottom:1px solid #e4e4e7;">
      <h2 style="margin:0;font-size:18px;color:#18181b;">Dagens oppsummering – {{len .Items}} nye anbud</h2>
    </div>
    <div style="padding:24px;">
      <p style="color:#71717a;margin:0 0 24px 0;">Her er anbudene som matchet dine søkeord i dag:</p>
      <table style="width:100%;border-collapse:collapse;">
      {{- range .Items}}
        <tr>
          <td style="padding:12px;border-bottom:1px solid #e4e4e7;">
            <strong style="color:#18181b;">{{.Title}}</strong><br/>
            <span style="font-size:13px;color:#71717a;">{{.Organization}} &middot; Frist: {{.Deadline}} &middot; Søkeord: {{.Keyword}}</span><br/>
            <a href="{{.URL}}" style="color:#3b82f6;font-size:13px;">Se detaljer</a>
          </td>
        </tr>
      {{- end}}
      </table>` + layoutFoot))

// AlertSubject subject line of an immediate notification
func AlertSubject(keyword string) string {
	return "Nytt anbud funnet for søkeordet: " + keyword
}

// DigestSubject subject line of a digest with n alerts
func DigestSubject(n int) string {
	return fmt.Sprintf("Dagens oppsummering – %d nye anbud", n)
}

func renderAlert(a models.Alert, f footer) (string, error) {
	var buf bytes.Buffer
	err := alertTmpl.Execute(&buf, struct {
		Item   item
		Footer footer
	}{itemFromAlert(a), f})
	if err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}

func renderDigest(alerts []models.Alert, f footer) (string, error) {
	items := make([]item, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, itemFromAlert(a))
	}
	var buf bytes.Buffer
	err := digestTmpl.Execute(&buf, struct {
		Items  []item
		Footer footer
	}{items, f})
	if err != nil {
		return "", fmt.Errorf("render digest email: %w", err)
	}
	return buf.String(), nil
}
