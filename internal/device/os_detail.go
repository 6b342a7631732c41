package device

import "strings"

// OSInfo expands the platform into a family tag plus a best-effort
// sub-detail. Unmatched versions terminate at "Unknown".
type OSInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Family  string `json:"family"`
	Detail  string `json:"detail"`
}

var osFamilies = map[string]string{
	"Windows":       "Windows",
	"Windows Phone": "Windows",
	"Android":       "Android",
	"iOS":           "iOS",
	"macOS":         "macOS",
	"Linux":         "Linux",
	"Chrome OS":     "Linux",
}

// Android version prefix to API level, newest first.
var androidAPILevels = []struct {
	prefix string
	api    string
}{
	{"14", "API 34"},
	{"13", "API 33"},
	{"12", "API 32"},
	{"11", "API 30"},
	{"10", "API 29"},
	{"9", "API 28"},
	{"8.1", "API 27"},
	{"8.0", "API 26"},
	{"7.1", "API 25"},
	{"7.0", "API 24"},
	{"6.0", "API 23"},
	{"5.1", "API 22"},
	{"5.0", "API 21"},
}

var windowsEditions = []struct {
	token   string
	edition string
}{
	{"Windows NT 10.0", "Windows 10/11"},
	{"Windows NT 6.3", "Windows 8.1"},
	{"Windows NT 6.2", "Windows 8"},
	{"Windows NT 6.1", "Windows 7"},
}

var macOSCodenames = []struct {
	prefix   string
	codename string
}{
	{"15", "Sequoia"},
	{"14", "Sonoma"},
	{"13", "Ventura"},
	{"12", "Monterey"},
	{"11", "Big Sur"},
	{"10.15", "Catalina"},
	{"10.14", "Mojave"},
	{"10.13", "High Sierra"},
	{"10.12", "Sierra"},
}

var linuxDistributions = []struct {
	token  string
	distro string
}{
	{"Ubuntu", "Ubuntu"},
	{"Fedora", "Fedora"},
	{"Debian", "Debian"},
	{"CentOS", "CentOS"},
	{"RHEL", "Red Hat"},
	{"SUSE", "SUSE"},
	{"Mint", "Linux Mint"},
}

func osInfo(platform, version, userAgent string) OSInfo {
	info := OSInfo{
		Name:    platform,
		Version: version,
		Family:  "Other",
		Detail:  "Unknown",
	}
	if family, ok := osFamilies[platform]; ok {
		info.Family = family
	}

	switch platform {
	case "Android":
		for _, level := range androidAPILevels {
			if strings.HasPrefix(version, level.prefix) {
				info.Detail = level.api
				break
			}
		}
	case "iOS":
		switch {
		case strings.Contains(userAgent, "iPhone"):
			info.Detail = "iPhone"
		case strings.Contains(userAgent, "iPad"):
			info.Detail = "iPad"
		case strings.Contains(userAgent, "iPod"):
			info.Detail = "iPod"
		}
	case "Windows":
		for _, edition := range windowsEditions {
			if strings.Contains(userAgent, edition.token) {
				info.Detail = edition.edition
				break
			}
		}
	case "macOS":
		for _, codename := range macOSCodenames {
			if strings.HasPrefix(version, codename.prefix) {
				info.Detail = codename.codename
				break
			}
		}
	case "Linux":
		for _, distribution := range linuxDistributions {
			if strings.Contains(userAgent, distribution.token) {
				info.Detail = distribution.distro
				break
			}
		}
	}

	return info
}
