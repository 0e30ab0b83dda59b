package template

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
)

type memStore struct {
	mu        sync.Mutex
	templates []*Template
	insertErr error
}

func (m *memStore) ActiveTemplates(_ context.Context, platformID string) ([]*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Template
	for _, t := range m.templates {
		if t.PlatformID == platformID && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) InsertTemplate(_ context.Context, t *Template) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
	return nil
}

func (m *memStore) DeactivateTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.ID == id {
			t.Active = false
		}
	}
	return nil
}

func (m *memStore) SetTemplateAnnotation(_ context.Context, id, annotation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.ID == id {
			t.Annotation = annotation
		}
	}
	return nil
}

type specExtractor struct{}

func (specExtractor) Name() string                                                     { return "spec" }
func (specExtractor) CanRun(context.Context, scan.Context) bool                        { return true }
func (specExtractor) Run(context.Context, scan.Context) (*extractor.ExtractedData, error) {
	return nil, nil
}
func (specExtractor) Validate(settings.Map) error { return nil }
func (specExtractor) SettingSpec(id string, observed any) settings.Def {
	def := settings.Def{Type: settings.TypeToggle, Default: false, RiskLevel: settings.RiskLow}
	if _, ok := observed.(string); ok {
		def = settings.Def{Type: settings.TypeText, Default: ""}
	}
	return def
}
func (specExtractor) RiskLevel(string, any) settings.RiskLevel { return settings.RiskNone }
func (specExtractor) Recommendation(string, any) string        { return "" }
func (specExtractor) Permissions() []string                    { return nil }
func (specExtractor) RateLimit() extractor.RateLimit           { return extractor.RateLimit{} }

func TestResolve_CreatesFirstVersion(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, nil)

	data := settings.Map{"ads": {"personalization": true}}
	tpl, err := svc.Resolve(context.Background(), "gmail", data, specExtractor{})
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Version != 1 || tpl.PreviousVersion != "" || !tpl.Active {
		t.Fatalf("unexpected first version: %+v", tpl)
	}
	if _, ok := tpl.Lookup("ads", "personalization"); !ok {
		t.Fatal("template should mirror the extracted tree")
	}
}

func TestResolve_ReusesMatchingTemplate(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, nil)
	data := settings.Map{"ads": {"personalization": true}}

	first, err := svc.Resolve(context.Background(), "gmail", data, specExtractor{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Resolve(context.Background(), "gmail", settings.Map{"ads": {"personalization": false}}, specExtractor{})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("matching structure must reuse the template: %s != %s", second.ID, first.ID)
	}
	if len(store.templates) != 1 {
		t.Fatalf("no new version should have been stored, have %d", len(store.templates))
	}
}

func TestResolve_StructuralChangeCreatesNewVersion(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, nil)

	v1, err := svc.Resolve(context.Background(), "gmail", settings.Map{"ads": {"personalization": true}}, specExtractor{})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := svc.Resolve(context.Background(), "gmail", settings.Map{"ads": {"personalization": true, "tracking": false}}, specExtractor{})
	if err != nil {
		t.Fatal(err)
	}
	if v2.Version != 2 || v2.PreviousVersion != v1.ID {
		t.Fatalf("new version should supersede v1: %+v", v2)
	}
	for _, stored := range store.templates {
		if stored.ID == v1.ID && stored.Active {
			t.Fatal("superseded template must be deactivated")
		}
	}
}

func TestResolve_InsertFailureSurfaces(t *testing.T) {
	store := &memStore{insertErr: errors.New("disk full")}
	svc := NewService(store, nil, nil)
	_, err := svc.Resolve(context.Background(), "gmail", settings.Map{"ads": {"x": true}}, specExtractor{})
	if err == nil {
		t.Fatal("insert failure must propagate")
	}
}
