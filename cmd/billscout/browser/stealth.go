package browser

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript hides the most common headless automation tells from
// portal bot checks. It runs before any page script.
const stealthScript = `
(function() {
    Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
    Object.defineProperty(navigator, 'languages', { get: () => Object.freeze(['en-US', 'en']), configurable: true });
    if (navigator.plugins.length === 0) {
        Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3], configurable: true });
    }
    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', { value: { runtime: {} }, writable: true, configurable: false });
    }
    if (!navigator.hardwareConcurrency) {
        Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 4, configurable: true });
    }
    const query = Permissions.prototype.query;
    Permissions.prototype.query = function(p) {
        if (p && p.name === 'notifications') {
            return Promise.resolve({ state: Notification.permission });
        }
        return query.call(this, p);
    };
})();
`

// allocatorOptions returns the Chrome flags for a session.
func allocatorOptions(cfg Config) ([]chromedp.ExecAllocatorOption, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.Stealth {
		opts = append(opts,
			chromedp.Flag("excludeSwitches", "enable-automation"),
			chromedp.Flag("useAutomationExtension", false),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("lang", "en-US,en"),
		)
	}
	path, err := ResolveChrome(cfg.ChromePath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts, nil
}

// injectStealthScript registers the stealth script for every document the
// tab loads from now on.
func injectStealthScript() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}
