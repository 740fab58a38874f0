// Package documents keeps the catalog of source documents that document
// navigation blocks point at.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BryanTheLai/stackrag/pkg/logger"
)

var ErrNotFound = errors.New("document not found")

// DocumentInfo describes one stored report.
type DocumentInfo struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	DocType     string    `json:"doc_type"`
	CompanyName string    `json:"company_name"`
	ReportDate  string    `json:"report_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Catalog looks up and maintains documents.
type Catalog interface {
	Get(ctx context.Context, id string) (*DocumentInfo, error)
	Exists(ctx context.Context, id string) bool
	Upsert(ctx context.Context, doc DocumentInfo) error
	List(ctx context.Context) ([]DocumentInfo, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    storage_path TEXT,
    doc_type TEXT,
    company_name TEXT,
    report_date TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_company ON documents(company_name);
`

// SQLiteCatalog stores documents in a SQLite table. It can share a database
// with the session store.
type SQLiteCatalog struct {
	db    *sql.DB
	owned bool
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*SQLiteCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	c, err := NewSQLiteCatalog(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewSQLiteCatalog uses an already open database. Close leaves it open.
func NewSQLiteCatalog(db *sql.DB) (*SQLiteCatalog, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create documents schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, filename, COALESCE(storage_path, ''), COALESCE(doc_type, ''),
		       COALESCE(company_name, ''), COALESCE(report_date, ''), created_at
		FROM documents WHERE id = ?`, id)

	var doc DocumentInfo
	err := row.Scan(&doc.ID, &doc.Filename, &doc.StoragePath, &doc.DocType,
		&doc.CompanyName, &doc.ReportDate, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// Exists reports whether id is in the catalog. Lookup failures count as missing.
func (c *SQLiteCatalog) Exists(ctx context.Context, id string) bool {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&n)
	if err != nil {
		logger.WithComponent("documents").Warn("Existence check failed", "document_id", id, "error", err)
		return false
	}
	return n > 0
}

func (c *SQLiteCatalog) Upsert(ctx context.Context, doc DocumentInfo) error {
	if strings.TrimSpace(doc.ID) == "" {
		return errors.New("document id is required")
	}
	if strings.TrimSpace(doc.Filename) == "" {
		return errors.New("document filename is required")
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, storage_path, doc_type, company_name, report_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			storage_path = excluded.storage_path,
			doc_type = excluded.doc_type,
			company_name = excluded.company_name,
			report_date = excluded.report_date`,
		doc.ID, doc.Filename, doc.StoragePath, doc.DocType, doc.CompanyName, doc.ReportDate)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// List returns all documents ordered by company then filename.
func (c *SQLiteCatalog) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, filename, COALESCE(storage_path, ''), COALESCE(doc_type, ''),
		       COALESCE(company_name, ''), COALESCE(report_date, ''), created_at
		FROM documents ORDER BY company_name, filename`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var doc DocumentInfo
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.StoragePath, &doc.DocType,
			&doc.CompanyName, &doc.ReportDate, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *SQLiteCatalog) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

var _ Catalog = (*SQLiteCatalog)(nil)
