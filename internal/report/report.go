// Package report renders match and answer results for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spigell/cv-matcher/internal/ai"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/retrieval"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use table, json or yaml)", s)
	}
}

// Row is the presentation form of a match result.
type Row struct {
	Filename string   `json:"filename" yaml:"filename"`
	Score    float64  `json:"score" yaml:"score"`
	Matched  []string `json:"matched" yaml:"matched"`
	Missing  []string `json:"missing" yaml:"missing"`
	Note     string   `json:"note,omitempty" yaml:"note,omitempty"`
	// AssessmentScore is set only for structured assessments.
	AssessmentScore *float64 `json:"assessment_score,omitempty" yaml:"assessment_score,omitempty"`
	Assessment      string   `json:"assessment,omitempty" yaml:"assessment,omitempty"`
}

func Rows(results []matching.Result) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{
			Filename: r.DocumentID,
			Score:    r.Score,
			Matched:  r.MatchedTerms,
			Missing:  r.MissingTerms,
			Note:     r.Note,
		}

		switch a := r.Assessment.(type) {
		case ai.StructuredAnswer:
			score := a.Score
			row.AssessmentScore = &score
			row.Assessment = a.Explanation
		case ai.RawAnswer:
			row.Assessment = a.Text
		case nil:
		default:
			row.Assessment = fmt.Sprintf("%v", a)
		}

		rows = append(rows, row)
	}
	return rows
}

// Write renders rows in the requested format.
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	case FormatTable, "":
		_, err := fmt.Fprintln(w, matchTable(rows))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func matchTable(rows []Row) string {
	withAssessment := false
	for _, r := range rows {
		if r.Assessment != "" || r.AssessmentScore != nil {
			withAssessment = true
			break
		}
	}

	headers := []string{"FILE", "SCORE", "MATCHED", "MISSING", "NOTE"}
	if withAssessment {
		headers = append(headers, "AI SCORE", "ASSESSMENT")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)

	for _, r := range rows {
		cells := []string{
			r.Filename,
			fmt.Sprintf("%.1f", r.Score),
			strings.Join(r.Matched, ", "),
			strings.Join(r.Missing, ", "),
			r.Note,
		}
		if withAssessment {
			aiScore := "-"
			if r.AssessmentScore != nil {
				aiScore = fmt.Sprintf("%.0f", *r.AssessmentScore)
			}
			cells = append(cells, aiScore, r.Assessment)
		}
		t.Row(cells...)
	}

	return t.Render()
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// WriteAnswer renders a question answering result.
func WriteAnswer(w io.Writer, format Format, res *retrieval.Result) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatYAML:
		return writeYAML(w, res)
	case FormatTable, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(answerStyle.Render(res.Answer))
	b.WriteString("\n")

	if len(res.Sources) > 0 {
		b.WriteString(mutedStyle.Render("Sources: " + strings.Join(res.Sources, ", ")))
		b.WriteString("\n")
	}
	if res.Note != "" {
		b.WriteString(warnStyle.Render(res.Note))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// DumpToTmpFile writes rows as JSON into a new temporary file and returns its name.
func DumpToTmpFile(rows []Row) (string, error) {
	file, err := os.CreateTemp("", "cv-matcher_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := writeJSON(file, rows); err != nil {
		return "", err
	}
	return file.Name(), nil
}
