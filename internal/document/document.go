// Package document loads candidate documents from disk. Extraction problems
// never abort loading: the document is kept with empty text and a warning is
// logged, so the engines can report it as having no text.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/spigell/cv-matcher/internal/logger"
	"go.uber.org/zap"
)

var ErrExtractionEmpty = errors.New("no text could be extracted")

type Document struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Text string `json:"-" yaml:"-"`
}

// HasText reports whether the document carries any non-whitespace text.
func (d Document) HasText() bool {
	return strings.TrimSpace(d.Text) != ""
}

type Documents struct {
	Items []Document
}

func (d *Documents) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Items)
}

func (d *Documents) IDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, d.Len())
	for _, doc := range d.Items {
		ids = append(ids, doc.ID)
	}
	return ids
}

func (d *Documents) FindByID(id string) (Document, bool) {
	for _, doc := range d.Items {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

// Select returns the documents with the given ids, in the order of ids.
func (d *Documents) Select(ids []string) (*Documents, error) {
	selected := &Documents{Items: make([]Document, 0, len(ids))}
	for _, id := range ids {
		doc, ok := d.FindByID(id)
		if !ok {
			return nil, fmt.Errorf("unknown document %q (loaded: %s)", id, strings.Join(d.IDs(), ", "))
		}
		selected.Items = append(selected.Items, doc)
	}
	return selected, nil
}

type extractFunc func(data []byte) (string, error)

var extractors = map[string]extractFunc{
	".pdf": extractPDF,
}

// Load reads paths in order. Document ids are base file names, suffixed with
// #2, #3... when names repeat.
func Load(ctx context.Context, paths []string, log *zap.Logger) (*Documents, error) {
	if log == nil {
		log = zap.NewNop()
	}

	docs := &Documents{Items: make([]Document, 0, len(paths))}
	seen := make(map[string]int)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := filepath.Base(path)
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}

		text, err := extractFile(path)
		if err != nil {
			log.Warn("document text extraction failed",
				zap.String(logger.FieldDocument, id),
				zap.String("path", path),
				zap.Error(err),
			)
			text = ""
		}

		log.Debug("document loaded",
			zap.String(logger.FieldDocument, id),
			zap.Int("text_length", utf8.RuneCountInString(text)),
		)

		docs.Items = append(docs.Items, Document{ID: id, Path: path, Text: text})
	}

	return docs, nil
}

// FromText builds an in-memory document.
func FromText(id, text string) Document {
	return Document{ID: id, Text: text}
}

func extractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	extract, ok := extractors[strings.ToLower(filepath.Ext(path))]
	if !ok {
		extract = extractText
	}

	text, err := extract(data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrExtractionEmpty
	}
	return text, nil
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("file is not valid UTF-8 text")
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return buf.String(), nil
}
