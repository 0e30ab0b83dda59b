package fallback

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/privscope/privscope/pkg/settings"
)

// SignalPattern describes one privacy setting the heuristics can spot
// in page text when structured selectors are unavailable.
type SignalPattern struct {
	ID             string
	Category       string
	Keywords       []string
	Default        any
	RiskLevel      settings.RiskLevel
	Recommendation string
}

// SignalPatterns is the generic pattern set shared by every platform
// the fallback path scans. Defaults reflect the usual provider stance:
// tracking features ship enabled.
var SignalPatterns = []SignalPattern{
	{
		ID: "ad_personalization", Category: "advertising",
		Keywords:       []string{"ad personalization", "personalized ads", "ads personalization", "personalised ads"},
		Default:        true,
		RiskLevel:      settings.RiskHigh,
		Recommendation: "Turn off ad personalization to stop interest profiling.",
	},
	{
		ID: "location_history", Category: "location",
		Keywords:       []string{"location history", "location tracking", "timeline history"},
		Default:        true,
		RiskLevel:      settings.RiskHigh,
		Recommendation: "Disable location history; past movement data stays queryable otherwise.",
	},
	{
		ID: "activity_tracking", Category: "activity",
		Keywords:       []string{"web & app activity", "activity tracking", "browsing activity", "activity log"},
		Default:        true,
		RiskLevel:      settings.RiskMedium,
		Recommendation: "Pause activity tracking to limit behavioral profiling.",
	},
	{
		ID: "search_history", Category: "activity",
		Keywords:  []string{"search history"},
		Default:   true,
		RiskLevel: settings.RiskMedium,
	},
	{
		ID: "data_sharing", Category: "sharing",
		Keywords:       []string{"data sharing", "share data with partners", "third-party sharing", "third party sharing"},
		Default:        true,
		RiskLevel:      settings.RiskHigh,
		Recommendation: "Opt out of partner data sharing.",
	},
	{
		ID: "face_recognition", Category: "biometrics",
		Keywords:       []string{"face recognition", "facial recognition"},
		Default:        false,
		RiskLevel:      settings.RiskHigh,
		Recommendation: "Keep face recognition disabled.",
	},
	{
		ID: "voice_recordings", Category: "activity",
		Keywords:  []string{"voice recordings", "audio recordings", "voice & audio activity"},
		Default:   true,
		RiskLevel: settings.RiskMedium,
	},
	{
		ID: "profile_visibility", Category: "sharing",
		Keywords:  []string{"public profile", "profile visibility"},
		Default:   true,
		RiskLevel: settings.RiskLow,
	},
}

var enablingWords = []string{"enabled", "turned on", " on ", "active", "allowed"}
var disablingWords = []string{"disabled", "turned off", " off ", "paused", "denied", "blocked", "no longer"}

// signalWindow is how far around a keyword match the state words are
// searched for, in bytes of lowercased text.
const signalWindow = 120

// ExtractSignals derives coarse setting signals from page text. Each
// matched pattern yields true/false when nearby language clearly says
// so, and an explicit nil (undetermined) otherwise; patterns whose
// keywords never appear are absent from the result entirely.
func ExtractSignals(text string) settings.Map {
	lower := strings.ToLower(text)
	out := make(settings.Map)
	for _, p := range SignalPatterns {
		idx, kw := findKeyword(lower, p.Keywords)
		if idx < 0 {
			continue
		}
		out.Set(p.Category, p.ID, inferState(lower, idx, len(kw)))
	}
	return out
}

func findKeyword(lower string, keywords []string) (int, string) {
	for _, kw := range keywords {
		if i := strings.Index(lower, kw); i >= 0 {
			return i, kw
		}
	}
	return -1, ""
}

// inferState looks for enabling/disabling language near the keyword.
// When both appear, the closer one wins; when neither does, the state
// is undetermined (nil), which downstream code must keep distinct from
// false.
func inferState(lower string, idx, kwLen int) any {
	start := idx - signalWindow
	if start < 0 {
		start = 0
	}
	end := idx + kwLen + signalWindow
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]
	center := idx - start + kwLen/2

	enableDist := nearestDistance(window, center, enablingWords)
	disableDist := nearestDistance(window, center, disablingWords)

	switch {
	case enableDist < 0 && disableDist < 0:
		return nil
	case disableDist < 0 || (enableDist >= 0 && enableDist <= disableDist):
		return true
	default:
		return false
	}
}

func nearestDistance(window string, center int, words []string) int {
	best := -1
	for _, w := range words {
		from := 0
		for {
			i := strings.Index(window[from:], w)
			if i < 0 {
				break
			}
			pos := from + i
			d := pos - center
			if d < 0 {
				d = -d
			}
			if best < 0 || d < best {
				best = d
			}
			from = pos + len(w)
		}
	}
	return best
}

// HTMLToText flattens an HTML document to whitespace-normalized text
// for the heuristics. Script and style bodies are dropped.
func HTMLToText(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// htmlTitle pulls the <title> out of an HTML document, used when the
// crawl API response carries no metadata.
func htmlTitle(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	if title, ok := findTitle(doc); ok {
		return strings.TrimSpace(title)
	}
	return ""
}

func findTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title, ok := findTitle(c); ok {
			return title, ok
		}
	}
	return "", false
}
