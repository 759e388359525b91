// Package references is a local reference library: documents indexed into a
// SQLite FTS5 table and searched with bm25 ranking to enrich generation
// prompts and supply citations.
package references

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/framewise/internal/model"
)

// Client resolves a topic to ranked reference documents and their citations
type Client interface {
	Search(ctx context.Context, query string, useSemantic bool) ([]model.ReferenceDocument, error)
	CitationsFor(docs []model.ReferenceDocument) []model.Citation
}

// LocalSource is the citation source for documents without a URL
const LocalSource = "Local reference library"

// nowFunc is replaced in tests
var nowFunc = time.Now

// Store is a SQLite-backed reference library
type Store struct {
	db           *sql.DB
	maxSnippets  int
	snippetChars int
}

var _ Client = (*Store)(nil)

// Open opens or creates the reference database at path
func Open(path string, cfg model.ReferencesConfig) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating reference directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening reference database: %w", err)
	}

	s := &Store{
		db:           db,
		maxSnippets:  cfg.MaxSnippets,
		snippetChars: cfg.SnippetChars,
	}
	if s.maxSnippets <= 0 {
		s.maxSnippets = 5
	}
	if s.snippetChars <= 0 {
		s.snippetChars = 600
	}

	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		rowid INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author TEXT,
		source TEXT,
		url TEXT,
		indexed_at TEXT NOT NULL,
		file_mod_time TEXT
	)`); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='documents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	for _, stmt := range []string{
		`CREATE VIRTUAL TABLE documents_fts USING fts5(title, content, content=documents, content_rowid=rowid)`,
		`CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
		END`,
		`CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
		END`,
		`CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
		END`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// Add inserts or replaces a document keyed by its ID
func (s *Store) Add(ctx context.Context, doc model.ReferenceDocument) error {
	return s.put(ctx, doc, "")
}

func (s *Store) put(ctx context.Context, doc model.ReferenceDocument, modTime string) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("document %s has no content", doc.ID)
	}
	if doc.Title == "" {
		doc.Title = doc.ID
	}
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = nowFunc()
	}

	// Upsert keeps the rowid stable so the update trigger resyncs FTS
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, author, source, url, indexed_at, file_mod_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			author = excluded.author,
			source = excluded.source,
			url = excluded.url,
			indexed_at = excluded.indexed_at,
			file_mod_time = excluded.file_mod_time`,
		doc.ID, doc.Title, doc.Content, doc.Author, doc.Source, doc.URL,
		doc.IndexedAt.UTC().Format(time.RFC3339Nano), modTime,
	)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.ID, err)
	}
	return nil
}

// Remove deletes a document. Removing an unknown ID is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("removing document %s: %w", id, err)
	}
	return nil
}

// Count returns the number of indexed documents
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Search returns up to MaxSnippets documents ranked by bm25. Keyword mode
// requires every query term; semantic mode accepts any term and lets the
// ranking order the results. Content is cut to a snippet around the first
// matched term.
func (s *Store) Search(ctx context.Context, query string, useSemantic bool) ([]model.ReferenceDocument, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	op := " AND "
	if useSemantic {
		op = " OR "
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, op)

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.content, d.author, d.source, d.url, d.indexed_at,
			bm25(documents_fts) AS score
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY score
		LIMIT ?`,
		match, s.maxSnippets,
	)
	if err != nil {
		return nil, fmt.Errorf("searching references: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.ReferenceDocument
	for rows.Next() {
		var (
			doc                 model.ReferenceDocument
			author, source, link sql.NullString
			indexedAt           string
			score               float64
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &author, &source, &link, &indexedAt, &score); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		doc.Author = author.String
		doc.Source = source.String
		doc.URL = link.String
		doc.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt)
		// bm25 is lower-is-better and negative for matches
		doc.Score = -score
		doc.Content = snippet(doc.Content, terms, s.snippetChars)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// CitationsFor builds one citation per document, in order
func (s *Store) CitationsFor(docs []model.ReferenceDocument) []model.Citation {
	return CitationsFor(docs)
}

// CitationsFor converts reference documents into citations
func CitationsFor(docs []model.ReferenceDocument) []model.Citation {
	if len(docs) == 0 {
		return nil
	}

	now := nowFunc()
	citations := make([]model.Citation, 0, len(docs))
	for _, doc := range docs {
		c := model.Citation{
			Title:      strings.TrimSpace(doc.Title),
			Author:     strings.TrimSpace(doc.Author),
			Source:     strings.TrimSpace(doc.Source),
			AccessDate: now,
		}
		if c.Title == "" {
			c.Title = doc.ID
		}
		if c.Author == "" {
			c.Author = model.UnknownAuthor
		}
		if u := strings.TrimSpace(doc.URL); u != "" {
			c.URL = &u
			if c.Source == "" {
				if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
					c.Source = strings.TrimPrefix(parsed.Hostname(), "www.")
				}
			}
		}
		if c.Source == "" {
			c.Source = LocalSource
		}
		citations = append(citations, c)
	}
	return citations
}

// queryTerms splits a query into lowercase alphanumeric terms of at least
// two characters. Quoting each term keeps FTS5 operators out of user input.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// snippet returns up to limit characters of content, starting at the
// paragraph or sentence holding the first matched term
func snippet(content string, terms []string, limit int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	start := firstMatch(content, terms)
	if start < 0 {
		start = 0
	}

	// Back up to the start of the sentence
	if i := strings.LastIndexAny(content[:start], ".!?\n"); i >= 0 {
		start = i + 1
	} else {
		start = 0
	}

	window := []rune(strings.TrimSpace(content[start:]))
	if len(window) <= limit {
		return string(window)
	}

	cut := string(window[:limit])
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// firstMatch returns the byte offset in content of the earliest
// case-insensitive occurrence of any term, or -1
func firstMatch(content string, terms []string) int {
	if len(terms) == 0 {
		return -1
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(quoted, "|"))
	if err != nil {
		return -1
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return -1
	}
	return loc[0]
}
