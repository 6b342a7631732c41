// Package traffic classifies where a click came from and synthesizes UTM
// parameter sets for catalog sources. Detection tables are ordered; the
// first match wins.
package traffic

import (
	"net/url"
	"strings"
)

// Source is the resolved traffic attribution for one click.
type Source struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Medium   string            `json:"medium"`
	Campaign string            `json:"campaign,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// AttributeInput carries the request attributes attribution reads.
type AttributeInput struct {
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
	Referer     string
	UserAgent   string
}

var socialPlatforms = []struct{ domain, platform string }{
	{"facebook.com", "Facebook"},
	{"instagram.com", "Instagram"},
	{"twitter.com", "Twitter"},
	{"x.com", "Twitter"},
	{"t.co", "Twitter"},
	{"linkedin.com", "LinkedIn"},
	{"lnkd.in", "LinkedIn"},
	{"pinterest.com", "Pinterest"},
	{"reddit.com", "Reddit"},
	{"youtube.com", "YouTube"},
	{"tiktok.com", "TikTok"},
	{"snapchat.com", "Snapchat"},
	{"tumblr.com", "Tumblr"},
	{"quora.com", "Quora"},
	{"vk.com", "VKontakte"},
	{"weibo.com", "Weibo"},
	{"whatsapp.com", "WhatsApp"},
	{"wa.me", "WhatsApp"},
	{"telegram.org", "Telegram"},
	{"t.me", "Telegram"},
	{"discord.com", "Discord"},
	{"medium.com", "Medium"},
}

var searchEngines = []struct{ domain, engine string }{
	{"google", "Google"},
	{"bing.com", "Bing"},
	{"yahoo.com", "Yahoo"},
	{"duckduckgo.com", "DuckDuckGo"},
	{"baidu.com", "Baidu"},
	{"yandex", "Yandex"},
	{"ask.com", "Ask"},
	{"aol.com", "AOL"},
	{"ecosia.org", "Ecosia"},
	{"qwant.com", "Qwant"},
	{"search.brave.com", "Brave Search"},
}

// Per-engine query parameter names carrying the search term.
var searchQueryParams = map[string][]string{
	"Google":     {"q", "query"},
	"Bing":       {"q", "search"},
	"Yahoo":      {"p", "q"},
	"DuckDuckGo": {"q"},
	"Baidu":      {"wd", "word"},
	"Yandex":     {"text"},
}

var defaultQueryParams = []string{"q", "query", "search", "p", "text"}

var emailClients = []struct{ domain, client string }{
	{"mail.google.com", "Gmail"},
	{"outlook.live.com", "Outlook"},
	{"outlook.office365.com", "Outlook"},
	{"mail.yahoo.com", "Yahoo Mail"},
	{"mail.proton.me", "ProtonMail"},
	{"aol.com/mail", "AOL Mail"},
}

var emailAgents = []struct{ token, client string }{
	{"Thunderbird", "Thunderbird"},
	{"Microsoft Outlook", "Outlook"},
	{"Apple Mail", "Apple Mail"},
}

var messagingApps = []struct{ domain, app string }{
	{"web.whatsapp.com", "WhatsApp"},
	{"web.telegram.org", "Telegram"},
	{"discord.com", "Discord"},
	{"teams.microsoft.com", "Microsoft Teams"},
	{"slack.com", "Slack"},
	{"messenger.com", "Facebook Messenger"},
}

var messagingAgents = []struct{ token, app string }{
	{"WhatsApp", "WhatsApp"},
	{"Telegram", "Telegram"},
	{"FB_IAB", "Facebook"},
	{"FBAN", "Facebook"},
}

var appAgents = []struct{ token, app string }{
	{"Instagram", "Instagram App"},
	{"FB_IAB", "Facebook App"},
	{"FBAN", "Facebook App"},
	{"Twitter", "Twitter App"},
	{"TweetDeck", "Twitter App"},
	{"LinkedIn", "LinkedIn App"},
	{"Pinterest", "Pinterest App"},
	{"Snapchat", "Snapchat App"},
	{"TikTok", "TikTok App"},
}

// Attribute resolves the traffic source. UTM parameters win outright; the
// referer is then checked as social, then search, then email, then
// messaging, then plain referral. An in-app user agent overrides the
// referer verdict last.
func Attribute(in AttributeInput) Source {
	source := Source{
		Type:    "direct",
		Name:    "Direct Visit",
		Medium:  "none",
		Details: map[string]string{},
	}

	switch {
	case in.UTMSource != "":
		source.Type = "campaign"
		source.Name = in.UTMSource
		source.Medium = in.UTMMedium
		if source.Medium == "" {
			source.Medium = "unknown"
		}
		source.Campaign = in.UTMCampaign
		if in.UTMTerm != "" {
			source.Details["term"] = in.UTMTerm
		}
		if in.UTMContent != "" {
			source.Details["content"] = in.UTMContent
		}
	case in.Referer != "":
		host := refererHost(in.Referer)
		if platform := matchDomain(host, socialPlatforms); platform != "" {
			source.Type = "social"
			source.Name = platform
			source.Medium = "social"
		} else if engine := matchSearchEngine(host); engine != "" {
			source.Type = "organic"
			source.Name = engine
			source.Medium = "search"
			if keywords := extractSearchQuery(in.Referer, engine); keywords != "" {
				source.Details["keywords"] = keywords
			}
		} else if client := detectEmailClient(host, in.UserAgent); client != "" {
			source.Type = "email"
			source.Name = client
			source.Medium = "email"
		} else if app := detectMessagingApp(host, in.UserAgent); app != "" {
			source.Type = "messaging"
			source.Name = app
			source.Medium = "chat"
		} else {
			source.Type = "referral"
			source.Name = host
			source.Medium = "referral"
		}
		source.Details["full_referer"] = in.Referer
	}

	if app := matchToken(in.UserAgent, appAgents); app != "" {
		source.Type = "app"
		source.Name = app
		source.Medium = "app"
	}

	return source
}

func refererHost(referer string) string {
	parsed, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func matchDomain(host string, table []struct{ domain, platform string }) string {
	for _, entry := range table {
		if strings.Contains(host, entry.domain) {
			return entry.platform
		}
	}
	return ""
}

func matchSearchEngine(host string) string {
	for _, entry := range searchEngines {
		if strings.Contains(host, entry.domain) {
			return entry.engine
		}
	}
	return ""
}

func matchToken(userAgent string, table []struct{ token, app string }) string {
	for _, entry := range table {
		if strings.Contains(userAgent, entry.token) {
			return entry.app
		}
	}
	return ""
}

func extractSearchQuery(referer, engine string) string {
	parsed, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	values := parsed.Query()
	lowered := make(url.Values, len(values))
	for key, v := range values {
		lowered[strings.ToLower(key)] = v
	}

	params, ok := searchQueryParams[engine]
	if !ok {
		params = defaultQueryParams
	}
	for _, param := range params {
		if term := lowered.Get(param); term != "" {
			return term
		}
	}
	return ""
}

func detectEmailClient(host, userAgent string) string {
	for _, entry := range emailClients {
		if strings.Contains(host, entry.domain) {
			return entry.client
		}
	}
	for _, entry := range emailAgents {
		if strings.Contains(userAgent, entry.token) {
			return entry.client
		}
	}
	return ""
}

func detectMessagingApp(host, userAgent string) string {
	for _, entry := range messagingApps {
		if strings.Contains(host, entry.domain) {
			return entry.app
		}
	}
	for _, entry := range messagingAgents {
		if strings.Contains(userAgent, entry.token) {
			return entry.app
		}
	}
	return ""
}
