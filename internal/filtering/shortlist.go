package filtering

import (
	"os"
	"slices"
	"time"

	"github.com/spigell/cv-matcher/internal/matching"
	"gopkg.in/yaml.v3"
)

// Shortlist is a score-ordered view over match results.
type Shortlist struct {
	Items []matching.Result
}

// NewShortlist copies results and orders them by descending score. Equal
// scores keep input order.
func NewShortlist(results []matching.Result) *Shortlist {
	items := slices.Clone(results)
	slices.SortStableFunc(items, func(a, b matching.Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return &Shortlist{Items: items}
}

func (s *Shortlist) Len() int {
	return len(s.Items)
}

func (s *Shortlist) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.DocumentID)
	}
	return ids
}

// Exclude removes the given document ids and returns the removed ones.
func (s *Shortlist) Exclude(ids []string) []string {
	return s.removeIf(func(r matching.Result) bool { return slices.Contains(ids, r.DocumentID) })
}

func (s *Shortlist) removeIf(drop func(matching.Result) bool) []string {
	var removed []string
	kept := s.Items[:0]
	for _, item := range s.Items {
		if drop(item) {
			removed = append(removed, item.DocumentID)
			continue
		}
		kept = append(kept, item)
	}
	s.Items = kept
	return removed
}

func (s *Shortlist) ToExcluded() *ExcludedDocuments {
	excluded := &ExcludedDocuments{}
	for _, item := range s.Items {
		excluded.Items = append(excluded.Items, &ExcludedDocument{
			ID:         item.DocumentID,
			Score:      item.Score,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// ExcludedDocuments is the content of an exclude file.
type ExcludedDocuments struct {
	Items []*ExcludedDocument `yaml:"documents"`
}

type ExcludedDocument struct {
	ID         string    `yaml:"id"`
	Score      float64   `yaml:"score,omitempty"`
	ExcludedAt time.Time `yaml:"excluded_at,omitempty"`
}

// LoadExcluded reads an exclude file. A missing or empty file yields an
// empty list.
func LoadExcluded(path string) (*ExcludedDocuments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ExcludedDocuments{}, nil
		}
		return nil, err
	}

	var excluded ExcludedDocuments
	if err := yaml.Unmarshal(data, &excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedDocuments) Append(other *ExcludedDocuments) {
	for _, item := range other.Items {
		if !slices.Contains(e.IDs(), item.ID) {
			e.Items = append(e.Items, item)
		}
	}
}

func (e *ExcludedDocuments) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedDocuments) ToFile(path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
