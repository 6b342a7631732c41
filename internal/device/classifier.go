// Package device parses user-agent strings into the device attributes
// recorded on a click. Matching is ordered-list, first match wins; class
// precedence is robot > tablet > mobile > desktop > unknown.
package device

import (
	"regexp"
	"strings"
)

const (
	TypeDesktop = "desktop"
	TypeTablet  = "tablet"
	TypeMobile  = "mobile"
	TypeRobot   = "robot"
	TypeUnknown = "unknown"
)

// Info is the parsed device attribute set.
type Info struct {
	Type            string `json:"device_type"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	Browser         string `json:"browser"`
	BrowserVersion  string `json:"browser_version"`
	OS              OSInfo `json:"os_info"`
}

var robotSignatures = []string{
	"Googlebot", "Bingbot", "YandexBot", "DuckDuckBot", "Baiduspider",
	"facebookexternalhit", "Slurp", "bot", "crawler", "spider",
	"curl", "Wget", "python-requests", "HeadlessChrome",
}

var tabletSignatures = []string{
	"iPad", "Tablet", "Kindle", "Silk", "PlayBook", "Nexus 7", "Nexus 9", "Nexus 10", "SM-T",
}

var mobileSignatures = []string{
	"iPhone", "iPod", "Windows Phone", "BlackBerry", "Opera Mini", "IEMobile", "Android", "Mobile",
}

var desktopSignatures = []string{
	"Windows NT", "Macintosh", "CrOS", "X11", "Linux",
}

// Classify parses a raw user-agent string.
func Classify(userAgent string) Info {
	info := Info{
		Type: classify(userAgent),
	}
	info.Platform, info.PlatformVersion = platform(userAgent)
	info.Browser, info.BrowserVersion = browser(userAgent)
	info.OS = osInfo(info.Platform, info.PlatformVersion, userAgent)
	return info
}

func classify(userAgent string) string {
	for _, group := range []struct {
		class      string
		signatures []string
	}{
		{TypeRobot, robotSignatures},
		{TypeTablet, tabletSignatures},
		{TypeMobile, mobileSignatures},
		{TypeDesktop, desktopSignatures},
	} {
		for _, signature := range group.signatures {
			if strings.Contains(userAgent, signature) {
				return group.class
			}
		}
	}
	return TypeUnknown
}

var platformMatchers = []struct {
	name    string
	token   string
	version *regexp.Regexp
}{
	{"Windows Phone", "Windows Phone", regexp.MustCompile(`Windows Phone (?:OS )?([\d.]+)`)},
	{"iOS", "iPhone", regexp.MustCompile(`OS (\d+[_.]\d+(?:[_.]\d+)?)`)},
	{"iOS", "iPad", regexp.MustCompile(`OS (\d+[_.]\d+(?:[_.]\d+)?)`)},
	{"iOS", "iPod", regexp.MustCompile(`OS (\d+[_.]\d+(?:[_.]\d+)?)`)},
	{"Android", "Android", regexp.MustCompile(`Android ([\d.]+)`)},
	{"Windows", "Windows NT", regexp.MustCompile(`Windows NT ([\d.]+)`)},
	{"macOS", "Macintosh", regexp.MustCompile(`Mac OS X (\d+[_.]\d+(?:[_.]\d+)?)`)},
	{"Chrome OS", "CrOS", regexp.MustCompile(`CrOS \S+ ([\d.]+)`)},
	{"Linux", "Linux", nil},
}

func platform(userAgent string) (string, string) {
	for _, matcher := range platformMatchers {
		if !strings.Contains(userAgent, matcher.token) {
			continue
		}
		version := ""
		if matcher.version != nil {
			if m := matcher.version.FindStringSubmatch(userAgent); len(m) == 2 {
				version = strings.ReplaceAll(m[1], "_", ".")
			}
		}
		return matcher.name, version
	}
	return "", ""
}

var browserMatchers = []struct {
	name    string
	version *regexp.Regexp
}{
	{"Edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/([\d.]+)`)},
	{"Opera", regexp.MustCompile(`(?:OPR|Opera)/([\d.]+)`)},
	{"Samsung Internet", regexp.MustCompile(`SamsungBrowser/([\d.]+)`)},
	{"Firefox", regexp.MustCompile(`(?:Firefox|FxiOS)/([\d.]+)`)},
	{"Chrome", regexp.MustCompile(`(?:Chrome|CriOS)/([\d.]+)`)},
	{"Safari", regexp.MustCompile(`Version/([\d.]+)`)},
	{"Internet Explorer", regexp.MustCompile(`(?:MSIE |rv:)([\d.]+)`)},
}

func browser(userAgent string) (string, string) {
	for _, matcher := range browserMatchers {
		if m := matcher.version.FindStringSubmatch(userAgent); len(m) == 2 {
			// Chrome and Safari both advertise "Safari/"; the Version/ token
			// only appears for real Safari, so ordering settles it.
			if matcher.name == "Safari" && !strings.Contains(userAgent, "Safari/") {
				continue
			}
			return matcher.name, m[1]
		}
	}
	return "", ""
}
