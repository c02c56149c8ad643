// Package source enumerates and fetches raw documents from a directory tree.
// The first path element under the root becomes the document's category, so
// files placed directly under the root carry no grouping and are excluded.
package source

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"knowledgebase/internal/models"
	"knowledgebase/internal/parser"
)

type Source struct {
	root string
}

func New(root string) *Source {
	return &Source{root: root}
}

// List walks the root and returns one DocumentRef per eligible file,
// identified by its slash-separated path relative to the root.
func (s *Source) List() ([]models.DocumentRef, error) {
	var refs []models.DocumentRef
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		category, ok := categoryOf(rel)
		if !ok {
			log.Debug().Str("file", rel).Msg("Skipping file outside any category directory")
			return nil
		}
		if !parser.IsSupported(rel) {
			log.Warn().Str("file", rel).Msg("Skipping unsupported file format")
			return nil
		}
		refs = append(refs, models.DocumentRef{Identifier: rel, Category: category})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Identifier < refs[j].Identifier })
	return refs, nil
}

// Fetch reads and parses the document into plain text.
func (s *Source) Fetch(identifier string) (string, error) {
	return parser.Parse(filepath.Join(s.root, filepath.FromSlash(identifier)))
}

func categoryOf(rel string) (string, bool) {
	idx := strings.Index(rel, "/")
	if idx <= 0 {
		return "", false
	}
	return rel[:idx], true
}
