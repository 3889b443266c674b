package browser

import (
	"os"
	"time"
)

// ExtraLargeTimeout suits pages known to be slow, such as mailbox refreshes.
const ExtraLargeTimeout = 120 * time.Second

// DefaultPollInterval is how often Page helpers check the page.
const DefaultPollInterval = 500 * time.Millisecond

// DefaultTimeout is how long Page helpers wait before failing: 20s, or one
// hour when the DEBUG environment variable is set so that a developer can
// inspect the browser.
func DefaultTimeout() time.Duration {
	if os.Getenv("DEBUG") != "" {
		return time.Hour
	}
	return 20 * time.Second
}
