package fallback

import "testing"

func TestExtractSignals_States(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		category string
		id       string
		want     any
	}{
		{
			"clearly enabled",
			"Ad personalization is currently enabled for your account.",
			"advertising", "ad_personalization", true,
		},
		{
			"clearly disabled",
			"Location History: paused. Your timeline will not be updated.",
			"location", "location_history", false,
		},
		{
			"mention without state is undetermined",
			"Manage your search history and related preferences here.",
			"activity", "search_history", nil,
		},
		{
			"closest state word wins",
			"Data sharing with partners is disabled. Other features stay enabled elsewhere on this very long settings page description text block.",
			"sharing", "data_sharing", false,
		},
	}

	for _, c := range cases {
		got := ExtractSignals(c.text)
		v, ok := got.Get(c.category, c.id)
		if !ok {
			t.Errorf("%s: signal %s/%s not extracted from %q", c.name, c.category, c.id, c.text)
			continue
		}
		if v != c.want {
			t.Errorf("%s: got %v, want %v", c.name, v, c.want)
		}
	}
}

func TestExtractSignals_AbsentKeywordsAbsentFromResult(t *testing.T) {
	got := ExtractSignals("Nothing about privacy here, just a cookie recipe.")
	if got.Count() != 0 {
		t.Fatalf("no keywords means no signals, got %#v", got)
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><title>Settings</title><style>.x{}</style></head>
	<body><script>evil()</script><p>Ad  personalization</p><p>enabled</p></body></html>`
	text, err := HTMLToText(html)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Settings Ad personalization enabled" {
		t.Fatalf("unexpected flattened text: %q", text)
	}
}

func TestHTMLTitle(t *testing.T) {
	if got := htmlTitle("<html><head><title> Privacy Center </title></head><body/></html>"); got != "Privacy Center" {
		t.Fatalf("title = %q", got)
	}
	if got := htmlTitle("<html><body>no title</body></html>"); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}
