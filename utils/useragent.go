// Package utils provides utility functions for the application.
package utils

import "strings"

// ClassifiedAgent is the best-effort classification of a user-agent string.
// Values are advisory analytics labels, never a security input.
type ClassifiedAgent struct {
	Device  string
	Browser string
	OS      string
}

const agentUnknown = "unknown"

// ClassifyUserAgent classifies a raw user-agent string into a device, browser and
// operating system label. It is a pure, total function: unrecognized or malformed
// input degrades to "unknown" labels and never produces an error.
func ClassifyUserAgent(ua string) ClassifiedAgent {
	out := ClassifiedAgent{Device: agentUnknown, Browser: agentUnknown, OS: agentUnknown}
	if ua == "" {
		return out
	}
	s := strings.ToLower(ua)

	switch {
	case strings.Contains(s, "ipad") || strings.Contains(s, "tablet"):
		out.Device = "tablet"
	case strings.Contains(s, "mobi") || strings.Contains(s, "android") || strings.Contains(s, "iphone"):
		out.Device = "mobile"
	case strings.Contains(s, "windows") || strings.Contains(s, "macintosh") ||
		strings.Contains(s, "x11") || strings.Contains(s, "linux"):
		out.Device = "desktop"
	}

	// Order matters: Edge and Opera embed "chrome", Chrome embeds "safari".
	switch {
	case strings.Contains(s, "edg/") || strings.Contains(s, "edge"):
		out.Browser = "edge"
	case strings.Contains(s, "opr/") || strings.Contains(s, "opera"):
		out.Browser = "opera"
	case strings.Contains(s, "firefox"):
		out.Browser = "firefox"
	case strings.Contains(s, "chrome"):
		out.Browser = "chrome"
	case strings.Contains(s, "safari"):
		out.Browser = "safari"
	}

	switch {
	case strings.Contains(s, "windows"):
		out.OS = "windows"
	case strings.Contains(s, "android"):
		out.OS = "android"
	case strings.Contains(s, "iphone") || strings.Contains(s, "ipad") || strings.Contains(s, "ios"):
		out.OS = "ios"
	case strings.Contains(s, "mac os") || strings.Contains(s, "macintosh"):
		out.OS = "macos"
	case strings.Contains(s, "linux"):
		out.OS = "linux"
	}

	return out
}
