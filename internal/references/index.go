package references

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/framewise/internal/extract"
	"github.com/ppiankov/framewise/internal/model"
)

// IndexSummary holds counts from one directory indexing run
type IndexSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of files processed
func (s IndexSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

var indexableExt = map[string]bool{
	".md":   true,
	".txt":  true,
	".html": true,
	".htm":  true,
}

// IndexDir walks dir and indexes every Markdown, text and HTML file. Files
// whose modification time matches the stored one are skipped. Progress lines
// are written to w.
func (s *Store) IndexDir(ctx context.Context, dir string, w io.Writer) (IndexSummary, error) {
	if w == nil {
		w = io.Discard
	}

	var summary IndexSummary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexableExt[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		id := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			return nil
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var stored sql.NullString
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM documents WHERE id = ?`, id,
		).Scan(&stored)
		exists := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			return nil
		}
		if exists && stored.String == modTime {
			fmt.Fprintf(w, "skipped %s\n", id)
			summary.Skipped++
			return nil
		}

		doc, err := loadDocument(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			return nil
		}
		doc.ID = id

		if err := s.put(ctx, *doc, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			return nil
		}

		if exists {
			fmt.Fprintf(w, "updated %s\n", id)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s\n", id)
			summary.Indexed++
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("indexing %s: %w", dir, err)
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

// loadDocument reads a file into a reference document. HTML is reduced to
// visible text; Markdown takes its title from the first heading.
func loadDocument(path string) (*model.ReferenceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &model.ReferenceDocument{
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		parsed, err := extract.ParseHTML(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing HTML: %w", err)
		}
		if parsed.Title != "" {
			doc.Title = parsed.Title
		}
		doc.Author = parsed.Author
		doc.Content = parsed.Text
	case ".md":
		if title := markdownTitle(string(data)); title != "" {
			doc.Title = title
		}
		doc.Content = strings.TrimSpace(string(data))
	default:
		doc.Content = strings.TrimSpace(string(data))
	}

	if doc.Content == "" {
		return nil, errors.New("no text content")
	}
	return doc, nil
}

func markdownTitle(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
