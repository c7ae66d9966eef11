// Package device turns raw User-Agent strings into the human-readable device
// names stored in signature proofs.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a display name such as "Chrome on Mac OS X" for the
// proof record. Unknown agents still produce a non-empty name.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser + " on unknown OS"
	case os != "":
		return "Unknown browser on " + os
	default:
		return "Unknown Device"
	}
}
