package browser

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/jmylchreest/billscout/internal/logger"
)

// ErrChromeNotFound is returned when a configured Chrome path does not resolve.
var ErrChromeNotFound = errors.New("chrome binary not found")

// chromeCandidates are tried in order when no path is configured.
var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

var lookPath = exec.LookPath

// ResolveChrome returns the browser binary for a session. A configured
// path (--chrome or BILLSCOUT_CHROME) must exist. Otherwise the usual
// install names are searched, and "" leaves the choice to chromedp.
func ResolveChrome(configured string) (string, error) {
	if configured != "" {
		path, err := lookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrChromeNotFound, configured)
		}
		return path, nil
	}
	for _, name := range chromeCandidates {
		if path, err := lookPath(name); err == nil {
			logger.Debug("using chrome", "name", name, "path", path)
			return path, nil
		}
	}
	logger.Warn("no chrome binary on PATH, falling back to chromedp lookup")
	return "", nil
}
