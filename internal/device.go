package internal

import "strings"

// DeviceInfo is a coarse classification of the client derived from the
// User-Agent header. It is display metadata for "manage devices" UIs and
// carries no security weight.
type DeviceInfo struct {
	Type    string `json:"device_type"`
	Browser string `json:"browser"`
}

// ParseDevice classifies a User-Agent string by substring matching. The match
// order is significant: Chrome UAs also contain "Safari", so Chrome is checked
// first; an empty UA yields an empty DeviceInfo.
func ParseDevice(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{}
	}

	info := DeviceInfo{Type: "desktop", Browser: "unknown"}

	if strings.Contains(userAgent, "Mobile") {
		info.Type = "mobile"
	} else if strings.Contains(userAgent, "Tablet") {
		info.Type = "tablet"
	}

	switch {
	case strings.Contains(userAgent, "Chrome"):
		info.Browser = "chrome"
	case strings.Contains(userAgent, "Firefox"):
		info.Browser = "firefox"
	case strings.Contains(userAgent, "Safari"):
		info.Browser = "safari"
	case strings.Contains(userAgent, "Edge"):
		info.Browser = "edge"
	}

	return info
}
