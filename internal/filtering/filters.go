package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/cv-matcher/internal/matching"
	"go.uber.org/zap"
)

type withTextFilter struct {
	disabled bool
	reason   string
}

// NewWithText creates a filter that removes documents without extracted text.
func NewWithText() Filter {
	return &withTextFilter{}
}

func (f *withTextFilter) Name() string { return "with_text" }

func (f *withTextFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *withTextFilter) IsEnabled() bool { return !f.disabled }

func (f *withTextFilter) Validate(*Config) error { return nil }

func (f *withTextFilter) Apply(_ context.Context, deps Deps, s *Shortlist) (*Shortlist, Step, error) {
	initial := s.Len()
	excluded := s.removeIf(func(r matching.Result) bool { return r.Note == matching.NoteNoText })
	if len(excluded) > 0 {
		deps.Logger.Info("excluding documents without text",
			zap.Strings("excluded_documents", excluded),
			zap.Int("documents_left", s.Len()),
		)
	}

	return s, Step{Initial: initial, Dropped: len(excluded), Left: s.Len()}, nil
}

func (f *withTextFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes documents listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, s *Shortlist) (*Shortlist, Step, error) {
	initial := s.Len()
	if f.path == "" {
		return s, Step{Initial: initial, Dropped: 0, Left: s.Len()}, nil
	}

	excluded, err := LoadExcluded(f.path)
	if err != nil {
		return s, Step{}, fmt.Errorf("getting excluded documents from file: %w", err)
	}

	removed := s.Exclude(excluded.IDs())
	if len(removed) > 0 {
		deps.Logger.Info("excluding documents based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_documents", removed),
			zap.Int("documents_left", s.Len()),
		)
	}

	return s, Step{Initial: initial, Dropped: len(removed), Left: s.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type minimumScoreFilter struct {
	disabled bool
	reason   string
	minimum  float64
}

// NewMinimumScore creates a filter that removes documents scoring below the configured minimum.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_score" }

func (f *minimumScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minimumScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg != nil {
		f.minimum = cfg.MinimumScore
	}
	if f.minimum < 0 || f.minimum > 100 {
		return fmt.Errorf("minimum score must be within [0,100], got %.2f", f.minimum)
	}
	return nil
}

func (f *minimumScoreFilter) Apply(_ context.Context, deps Deps, s *Shortlist) (*Shortlist, Step, error) {
	initial := s.Len()
	if f.minimum == 0 {
		return s, Step{Initial: initial, Dropped: 0, Left: s.Len()}, nil
	}

	removed := s.removeIf(func(r matching.Result) bool { return r.Score < f.minimum })
	if len(removed) > 0 {
		deps.Logger.Info("excluding documents below minimum score",
			zap.Float64("minimum_score", f.minimum),
			zap.Strings("excluded_documents", removed),
			zap.Int("documents_left", s.Len()),
		)
	}

	return s, Step{Initial: initial, Dropped: len(removed), Left: s.Len()}, nil
}

func (f *minimumScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum_score": fmt.Sprintf("%.2f", f.minimum)},
	}
}

type topFilter struct {
	limit int
}

// NewTop creates a filter that keeps only the best N documents.
func NewTop() Filter {
	return &topFilter{}
}

func (f *topFilter) Name() string { return "top" }

func (f *topFilter) Disable(string) {}

func (f *topFilter) IsEnabled() bool { return true }

func (f *topFilter) Validate(cfg *Config) error {
	f.limit = 0
	if cfg != nil {
		f.limit = cfg.Top
	}
	if f.limit < 0 {
		return fmt.Errorf("top must not be negative, got %d", f.limit)
	}
	return nil
}

func (f *topFilter) Apply(_ context.Context, _ Deps, s *Shortlist) (*Shortlist, Step, error) {
	initial := s.Len()
	if f.limit > 0 && s.Len() > f.limit {
		s.Items = s.Items[:f.limit]
	}
	return s, Step{Initial: initial, Dropped: initial - s.Len(), Left: s.Len()}, nil
}

func (f *topFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{"top": strconv.Itoa(f.limit)}}
}
