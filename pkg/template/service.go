package template

import (
	"context"
	"sort"
	"time"

	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/settings"
)

// Store is the persistence surface the service needs. *storage.DB
// satisfies it; tests substitute in-memory fakes.
type Store interface {
	ActiveTemplates(ctx context.Context, platformID string) ([]*Template, error)
	InsertTemplate(ctx context.Context, t *Template) error
	DeactivateTemplate(ctx context.Context, id string) error
	SetTemplateAnnotation(ctx context.Context, id, annotation string) error
}

// Annotator produces an opaque natural-language analysis of a
// template's structure. It is optional and strictly best-effort: the
// service attaches whatever comes back and proceeds unblocked when the
// call fails.
type Annotator interface {
	AnnotateTemplate(ctx context.Context, t *Template) (string, error)
}

// Logger matches the engine's logging surface so the service can share
// the caller's logger.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Service finds or creates the template a scan result belongs to.
type Service struct {
	store     Store
	annotator Annotator
	log       Logger

	annotateTimeout time.Duration
}

func NewService(store Store, annotator Annotator, log Logger) *Service {
	if log == nil {
		log = nopLogger{}
	}
	return &Service{store: store, annotator: annotator, log: log, annotateTimeout: 30 * time.Second}
}

// FindMatching returns the newest active template whose structure
// covers the extracted data, or nil when none matches.
func (s *Service) FindMatching(ctx context.Context, platformID string, data settings.Map) (*Template, error) {
	active, err := s.store.ActiveTemplates(ctx, platformID)
	if err != nil {
		return nil, err
	}
	return matchIn(active, data), nil
}

// matchIn returns the newest template in active whose structure covers
// data, or nil. Sorts active newest-first as a side effect.
func matchIn(active []*Template, data settings.Map) *Template {
	sortByVersionDesc(active)
	for _, t := range active {
		if t.Matches(data) {
			return t
		}
	}
	return nil
}

// Resolve returns the active template matching the extracted data,
// creating and persisting a new version when no active template's
// structure fits. Creation deactivates the superseded predecessor and
// kicks off annotation in the background.
func (s *Service) Resolve(ctx context.Context, platformID string, data settings.Map, ex extractor.Extractor) (*Template, error) {
	active, err := s.store.ActiveTemplates(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if t := matchIn(active, data); t != nil {
		return t, nil
	}

	var prev *Template
	if len(active) > 0 {
		prev = active[0]
	}
	created := BuildFromExtraction(platformID, data, ex, prev)
	if err := s.store.InsertTemplate(ctx, created); err != nil {
		return nil, err
	}
	if prev != nil {
		if err := s.store.DeactivateTemplate(ctx, prev.ID); err != nil {
			s.log.Warnf("could not deactivate superseded template %s: %v", prev.ID, err)
		}
	}
	s.annotateAsync(created)
	return created, nil
}

// annotateAsync requests an analysis blob for a freshly created
// template without blocking the scan that triggered it.
func (s *Service) annotateAsync(t *Template) {
	if s.annotator == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.annotateTimeout)
		defer cancel()
		blob, err := s.annotator.AnnotateTemplate(ctx, t)
		if err != nil {
			s.log.Warnf("template annotation failed for %s: %v", t.ID, err)
			return
		}
		if blob == "" {
			return
		}
		if err := s.store.SetTemplateAnnotation(ctx, t.ID, blob); err != nil {
			s.log.Warnf("could not store annotation for %s: %v", t.ID, err)
			return
		}
		s.log.Debugf("attached annotation to template %s", t.ID)
	}()
}

func sortByVersionDesc(ts []*Template) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Version > ts[j].Version })
}
