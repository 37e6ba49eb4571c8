// Package browser drives a headless Chrome session for exploration and
// login through chromedp.
package browser

import (
	"time"

	"github.com/jmylchreest/billscout/internal/config"
)

// Config holds browser session settings.
type Config struct {
	// ChromePath overrides the browser binary lookup.
	ChromePath      string
	UserAgent       string
	Headless        bool
	Stealth         bool // Enable anti-bot detection evasion
	NavTimeout      time.Duration
	SPAWaitAttempts int
	SPAWaitInterval time.Duration
	// MinBodyText is the visible text length at which a client-rendered
	// page counts as loaded.
	MinBodyText int
}

// DefaultConfig returns defaults matching the engine config.
func DefaultConfig(cfg config.Config) Config {
	return Config{
		UserAgent:       defaultUserAgent,
		Headless:        true,
		NavTimeout:      30 * time.Second,
		SPAWaitAttempts: cfg.SPAWaitAttempts,
		SPAWaitInterval: cfg.SPAWaitInterval,
		MinBodyText:     200,
	}
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
