package explorer

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrAntiBot is returned by browsers when navigation lands on a challenge
// page. The engine stops the run when it sees it.
var ErrAntiBot = errors.New("anti-bot challenge")

// DetectChallenge returns the kind of challenge or CAPTCHA page content
// is, or "" for a normal page.
func DetectChallenge(content string) string {
	title := ""
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return detectChallengePage(title, content)
}

func detectChallengePage(title, html string) string {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	switch {
	case strings.Contains(titleLower, "just a moment"),
		strings.Contains(titleLower, "attention required"),
		strings.Contains(htmlLower, "cf-challenge"),
		strings.Contains(htmlLower, "cf_chl_opt"):
		return "cloudflare"
	case strings.Contains(htmlLower, "challenges.cloudflare.com/turnstile"),
		strings.Contains(htmlLower, "cf-turnstile"):
		return "cloudflare-turnstile"
	case strings.Contains(htmlLower, "hcaptcha.com"),
		strings.Contains(htmlLower, "h-captcha"):
		return "hcaptcha"
	case strings.Contains(htmlLower, "google.com/recaptcha"),
		strings.Contains(htmlLower, "g-recaptcha"):
		return "recaptcha"
	case strings.Contains(titleLower, "access denied"),
		strings.Contains(titleLower, "bot detection"),
		strings.Contains(htmlLower, "robot or human"):
		return "anti-bot"
	}
	return ""
}
