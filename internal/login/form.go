package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/oracle"
)

// Form holds the CSS selectors of a login form. Submit may be empty, in
// which case the password field is submitted with Enter.
type Form struct {
	Username   string
	Password   string
	Submit     string
	Source     string
	Confidence float64
}

const (
	SourceOracle    = "oracle"
	SourceHeuristic = "heuristic"
)

// minOracleConfidence is the lowest oracle confidence accepted without
// falling back to the heuristic.
const minOracleConfidence = 0.5

var usernameHints = []string{"user", "email", "login", "account", "customer", "member"}

var submitWords = []string{"log in", "login", "sign in", "signin", "submit", "continue"}

// DetectForm finds the login form in markup. Oracle selectors are used
// only when every one of them matches an element of the page.
func DetectForm(ctx context.Context, asker oracle.Asker, pageURL, markup string) (Form, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Form{}, fmt.Errorf("failed to parse login page: %w", err)
	}

	if asker != nil {
		guess, err := oracle.DetectLoginForm(ctx, asker, pageURL, markup)
		switch {
		case err != nil:
			logFrom(ctx).Warn("login form detection failed, using heuristics", "url", pageURL, "error", err)
		case guess.Found && guess.Confidence >= minOracleConfidence && verify(doc, guess):
			return Form{
				Username:   guess.UsernameField,
				Password:   guess.PasswordField,
				Submit:     guess.SubmitButton,
				Source:     SourceOracle,
				Confidence: guess.Confidence,
			}, nil
		default:
			logFrom(ctx).Debug("oracle login form rejected",
				"url", pageURL,
				"found", guess.Found,
				"confidence", guess.Confidence,
			)
		}
	}

	if f, ok := heuristicForm(doc); ok {
		return f, nil
	}
	return Form{}, ErrFormNotFound
}

// verify checks that the oracle's selectors all match the page.
func verify(doc *goquery.Document, f oracle.LoginForm) bool {
	for _, sel := range []string{f.UsernameField, f.PasswordField} {
		if sel == "" || doc.Find(sel).Length() == 0 {
			return false
		}
	}
	return f.SubmitButton == "" || doc.Find(f.SubmitButton).Length() > 0
}

// heuristicForm locates the first password field and the username field
// and submit control that belong with it.
func heuristicForm(doc *goquery.Document) (Form, bool) {
	password := doc.Find(`input[type="password"]`).First()
	if password.Length() == 0 {
		return Form{}, false
	}

	scope := password.Closest("form")
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var username *goquery.Selection
	scope.Find("input").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if isUsernameInput(s) {
			username = s
			return false
		}
		return true
	})
	if username == nil {
		return Form{}, false
	}

	return Form{
		Username:   selectorFor(username),
		Password:   selectorFor(password),
		Submit:     submitSelector(scope),
		Source:     SourceHeuristic,
		Confidence: 0.5,
	}, true
}

func isUsernameInput(s *goquery.Selection) bool {
	typ := strings.ToLower(s.AttrOr("type", "text"))
	switch typ {
	case "email":
		return true
	case "text", "tel":
	default:
		return false
	}
	attrs := strings.ToLower(strings.Join([]string{
		s.AttrOr("name", ""), s.AttrOr("id", ""), s.AttrOr("autocomplete", ""), s.AttrOr("placeholder", ""),
	}, " "))
	for _, hint := range usernameHints {
		if strings.Contains(attrs, hint) {
			return true
		}
	}
	return false
}

func submitSelector(scope *goquery.Selection) string {
	if s := scope.Find(`button[type="submit"], input[type="submit"]`).First(); s.Length() > 0 {
		return selectorFor(s)
	}
	var found string
	scope.Find("button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, w := range submitWords {
			if strings.Contains(text, w) {
				found = selectorFor(s)
				return false
			}
		}
		return true
	})
	return found
}

// selectorFor builds a CSS selector that addresses s: its id when it has
// one, otherwise its tag and name.
func selectorFor(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id := strings.TrimSpace(s.AttrOr("id", "")); id != "" && !strings.ContainsAny(id, " .:#[]\"") {
		return "#" + id
	}
	if name := strings.TrimSpace(s.AttrOr("name", "")); name != "" {
		return fmt.Sprintf(`%s[name=%q]`, tag, name)
	}
	if typ := strings.TrimSpace(s.AttrOr("type", "")); typ != "" {
		return fmt.Sprintf(`%s[type=%q]`, tag, typ)
	}
	return tag
}
