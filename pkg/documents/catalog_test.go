package documents

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "data", "stackrag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("should report a missing document", func(t *testing.T) {
		c := newTestCatalog(t)
		_, err := c.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, c.Exists(ctx, "nope"))
	})

	t.Run("should insert then update a document", func(t *testing.T) {
		c := newTestCatalog(t)
		doc := DocumentInfo{
			ID:          "doc-1",
			Filename:    "acme-10k.pdf",
			StoragePath: "reports/acme-10k.pdf",
			DocType:     "10-K",
			CompanyName: "Acme",
			ReportDate:  "2024-12-31",
		}
		require.NoError(t, c.Upsert(ctx, doc))
		assert.True(t, c.Exists(ctx, "doc-1"))

		got, err := c.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.CompanyName)
		assert.Equal(t, "10-K", got.DocType)
		assert.False(t, got.CreatedAt.IsZero())

		doc.DocType = "Annual Report"
		require.NoError(t, c.Upsert(ctx, doc))
		got, err = c.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "Annual Report", got.DocType)
	})

	t.Run("should validate required fields", func(t *testing.T) {
		c := newTestCatalog(t)
		assert.Error(t, c.Upsert(ctx, DocumentInfo{Filename: "x.pdf"}))
		assert.Error(t, c.Upsert(ctx, DocumentInfo{ID: "x"}))
	})

	t.Run("should list by company and filename", func(t *testing.T) {
		c := newTestCatalog(t)
		require.NoError(t, c.Upsert(ctx, DocumentInfo{ID: "3", Filename: "b.pdf", CompanyName: "Zeta"}))
		require.NoError(t, c.Upsert(ctx, DocumentInfo{ID: "2", Filename: "b.pdf", CompanyName: "Acme"}))
		require.NoError(t, c.Upsert(ctx, DocumentInfo{ID: "1", Filename: "a.pdf", CompanyName: "Acme"}))

		docs, err := c.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, []string{"1", "2", "3"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
	})
}
