package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/models"
)

// ReplaceChunks deletes any chunks for documentID and inserts chunks in one
// transaction. Re-ingesting a document is always delete-then-insert, never
// an in-place update. Every chunk is validated and its company/product_code
// checked against the owning document's product before anything is written.
func (c *Catalog) ReplaceChunks(ctx context.Context, documentID string, chunks []*models.PolicyChunk) error {
	doc, err := c.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	product, err := c.GetProduct(ctx, doc.ProductID)
	if err != nil {
		return err
	}
	for _, ch := range chunks {
		if err := ch.Validate(); err != nil {
			return clauseerr.New(clauseerr.InvalidInput, "catalog.ReplaceChunks", err)
		}
		if ch.Company != product.Company || ch.ProductCode != product.ProductCode {
			return clauseerr.New(clauseerr.InvalidInput, "catalog.ReplaceChunks",
				fmt.Errorf("chunk %s company/product_code does not match product %s", ch.ID, product.ID))
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM policy_chunks WHERE document_id = ?`, documentID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO policy_chunks
		 (id, document_id, chunk_index, content, company, product_code, product_name, doc_type,
		  section_id, section_title, parent_section, level, section_path, page_number,
		  category, entity_role, keywords, is_table, table_data, table_refs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		keywordsJSON, err := json.Marshal(ch.Keywords)
		if err != nil {
			return fmt.Errorf("failed to marshal keywords: %w", err)
		}
		tableDataJSON, err := json.Marshal(ch.TableData)
		if err != nil {
			return fmt.Errorf("failed to marshal table_data: %w", err)
		}
		tableRefsJSON, err := json.Marshal(ch.TableRefs)
		if err != nil {
			return fmt.Errorf("failed to marshal table_refs: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.ChunkIndex, ch.Content, ch.Company, ch.ProductCode,
			ch.ProductName, ch.DocType, ch.SectionID, ch.SectionTitle, ch.ParentSection,
			ch.Level, ch.SectionPath, ch.PageNumber, ch.Category, ch.EntityRole,
			string(keywordsJSON), ch.IsTable, string(tableDataJSON), string(tableRefsJSON),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}

	return tx.Commit()
}

const chunkColumns = `id, document_id, chunk_index, content, company, product_code, product_name, doc_type,
	section_id, section_title, parent_section, level, section_path, page_number,
	category, entity_role, keywords, is_table, table_data, table_refs`

// GetChunk returns a chunk by ID. This satisfies the retriever's ChunkStore,
// hydrating fused search hits into full records.
func (c *Catalog) GetChunk(ctx context.Context, id string) (*models.PolicyChunk, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM policy_chunks WHERE id = ?`, id)
	ch, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, clauseerr.New(clauseerr.NotFound, "catalog.GetChunk", fmt.Errorf("chunk not found: %s", id))
	}
	return ch, err
}

// GetChunksByDocumentID returns a document's chunks in chunk_index order.
func (c *Catalog) GetChunksByDocumentID(ctx context.Context, documentID string) ([]*models.PolicyChunk, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM policy_chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.PolicyChunk
	for rows.Next() {
		ch, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// ChunkIDs returns every chunk ID in the store.
func (c *Catalog) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM policy_chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunksByDocumentID removes all chunks belonging to documentID.
func (c *Catalog) DeleteChunksByDocumentID(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM policy_chunks WHERE document_id = ?`, documentID)
	return err
}

// CountChunks returns the number of stored chunks.
func (c *Catalog) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_chunks`).Scan(&n)
	return n, err
}

func scanChunk(scan func(dest ...any) error) (*models.PolicyChunk, error) {
	var ch models.PolicyChunk
	var sectionID, parentSection, entityRole sql.NullString
	var keywordsJSON, tableDataJSON, tableRefsJSON sql.NullString
	var pageNumber sql.NullInt64
	err := scan(&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Content, &ch.Company,
		&ch.ProductCode, &ch.ProductName, &ch.DocType, &sectionID, &ch.SectionTitle,
		&parentSection, &ch.Level, &ch.SectionPath, &pageNumber, &ch.Category,
		&entityRole, &keywordsJSON, &ch.IsTable, &tableDataJSON, &tableRefsJSON)
	if err != nil {
		return nil, err
	}
	ch.SectionID = sectionID.String
	ch.ParentSection = parentSection.String
	ch.EntityRole = models.EntityRole(entityRole.String)
	ch.PageNumber = int(pageNumber.Int64)
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &ch.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	if tableDataJSON.Valid && tableDataJSON.String != "" {
		if err := json.Unmarshal([]byte(tableDataJSON.String), &ch.TableData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table_data: %w", err)
		}
	}
	if tableRefsJSON.Valid && tableRefsJSON.String != "" {
		if err := json.Unmarshal([]byte(tableRefsJSON.String), &ch.TableRefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table_refs: %w", err)
		}
	}
	return &ch, nil
}
