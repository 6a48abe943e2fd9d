package notify

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/unsubscribe"
)

// Links builds the footer links of outgoing mail
type Links struct {
	appURL string
	signer *unsubscribe.Signer
}

// NewLinks signer may be nil, in which case the unsubscribe link points at the settings page
func NewLinks(appURL string, signer *unsubscribe.Signer) *Links {
	return &Links{appURL: strings.TrimRight(appURL, "/"), signer: signer}
}

// Settings generic settings page
func (l *Links) Settings() string {
	return l.appURL + "/settings"
}

// Unsubscribe one-click opt-out URL carrying a fresh token
func (l *Links) Unsubscribe(subscriberID string) string {
	if l.signer == nil {
		return l.Settings()
	}
	token, err := l.signer.Issue(subscriberID)
	if err != nil {
		logger.GetLogger("notify").Warnf("unsubscribe token for %s: %v", subscriberID, err)
		return l.Settings()
	}
	return l.appURL + "/unsubscribe?token=" + url.QueryEscape(token)
}

func (l *Links) footer(subscriberID string) footer {
	return footer{
		UnsubscribeURL: template.URL(l.Unsubscribe(subscriberID)),
		SettingsURL:    template.URL(l.Settings()),
	}
}
