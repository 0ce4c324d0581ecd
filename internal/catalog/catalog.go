// Package catalog provides the SQLite-backed Product/PolicyDocument store,
// the document verification lifecycle, and the relational side of the chunk
// store the retriever hydrates results from.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/models"
)

// Catalog is the relational metadata store: products, policy documents,
// policy chunks, and rate-table records.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		product_code TEXT NOT NULL,
		name TEXT NOT NULL,
		company TEXT NOT NULL,
		category TEXT,
		publish_time TIMESTAMP,
		UNIQUE (company, product_code)
	);

	CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

	CREATE TABLE IF NOT EXISTS policy_documents (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		filename TEXT,
		local_path TEXT,
		source_url TEXT,
		file_hash TEXT,
		file_size INTEGER,
		downloaded_at TIMESTAMP,
		verification_status TEXT NOT NULL DEFAULT 'PENDING',
		reviewer_notes TEXT,
		pdf_links TEXT,
		FOREIGN KEY (product_id) REFERENCES products(id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_product ON policy_documents(product_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON policy_documents(verification_status);

	CREATE TABLE IF NOT EXISTS policy_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		company TEXT NOT NULL,
		product_code TEXT NOT NULL,
		product_name TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		section_id TEXT,
		section_title TEXT,
		parent_section TEXT,
		level INTEGER,
		section_path TEXT,
		page_number INTEGER,
		category TEXT NOT NULL,
		entity_role TEXT,
		keywords TEXT,
		is_table INTEGER NOT NULL DEFAULT 0,
		table_data TEXT,
		table_refs TEXT,
		UNIQUE (document_id, chunk_index),
		FOREIGN KEY (document_id) REFERENCES policy_documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON policy_chunks(document_id);

	CREATE TABLE IF NOT EXISTS rate_tables (
		uuid TEXT PRIMARY KEY,
		source_document_id TEXT NOT NULL,
		page_range_start INTEGER,
		page_range_end INTEGER,
		headers TEXT,
		row_count INTEGER,
		col_count INTEGER,
		csv_path TEXT NOT NULL,
		product_code TEXT,
		table_type TEXT NOT NULL,
		extraction_confidence REAL,
		created_at TIMESTAMP,
		FOREIGN KEY (source_document_id) REFERENCES policy_documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_rate_tables_document ON rate_tables(source_document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// CreateProduct inserts a product.
func (c *Catalog) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO products (id, product_code, name, company, category, publish_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProductCode, p.Name, p.Company, p.Category, p.PublishTime,
	)
	return err
}

// GetProduct returns a product by ID.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, product_code, name, company, category, publish_time
		 FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// GetProductByCode returns a product by its product_code.
func (c *Catalog) GetProductByCode(ctx context.Context, code string) (*models.Product, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, product_code, name, company, category, publish_time
		 FROM products WHERE product_code = ?`, code)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (*models.Product, error) {
	var p models.Product
	var publish sql.NullTime
	err := row.Scan(&p.ID, &p.ProductCode, &p.Name, &p.Company, &p.Category, &publish)
	if err == sql.ErrNoRows {
		return nil, clauseerr.New(clauseerr.NotFound, "catalog.GetProduct", fmt.Errorf("product not found"))
	}
	if err != nil {
		return nil, err
	}
	if publish.Valid {
		p.PublishTime = publish.Time
	}
	return &p, nil
}

// ListProducts returns every product, ordered by company then code.
func (c *Catalog) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, product_code, name, company, category, publish_time
		 FROM products ORDER BY company, product_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		var publish sql.NullTime
		if err := rows.Scan(&p.ID, &p.ProductCode, &p.Name, &p.Company, &p.Category, &publish); err != nil {
			return nil, err
		}
		if publish.Valid {
			p.PublishTime = publish.Time
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// CreateDocument inserts a policy document. A zero verification status
// defaults to PENDING.
func (c *Catalog) CreateDocument(ctx context.Context, d *models.PolicyDocument) error {
	if d.VerificationStatus == "" {
		d.VerificationStatus = models.StatusPending
	}
	linksJSON, err := json.Marshal(d.PDFLinks)
	if err != nil {
		return fmt.Errorf("failed to marshal pdf_links: %w", err)
	}
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now()
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO policy_documents
		 (id, product_id, doc_type, filename, local_path, source_url, file_hash,
		  file_size, downloaded_at, verification_status, reviewer_notes, pdf_links)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProductID, d.DocType, d.Filename, d.LocalPath, d.SourceURL, d.FileHash,
		d.FileSize, d.DownloadedAt, d.VerificationStatus, d.ReviewerNotes, string(linksJSON),
	)
	return err
}

// GetDocument returns a policy document by ID.
func (c *Catalog) GetDocument(ctx context.Context, id string) (*models.PolicyDocument, error) {
	var d models.PolicyDocument
	var linksJSON sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT id, product_id, doc_type, filename, local_path, source_url, file_hash,
		        file_size, downloaded_at, verification_status, reviewer_notes, pdf_links
		 FROM policy_documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.ProductID, &d.DocType, &d.Filename, &d.LocalPath, &d.SourceURL,
		&d.FileHash, &d.FileSize, &d.DownloadedAt, &d.VerificationStatus, &d.ReviewerNotes, &linksJSON)
	if err == sql.ErrNoRows {
		return nil, clauseerr.New(clauseerr.NotFound, "catalog.GetDocument", fmt.Errorf("document not found: %s", id))
	}
	if err != nil {
		return nil, err
	}
	if linksJSON.Valid && linksJSON.String != "" {
		if err := json.Unmarshal([]byte(linksJSON.String), &d.PDFLinks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pdf_links: %w", err)
		}
	}
	return &d, nil
}

// ListDocumentsByStatus returns documents in the given verification status.
func (c *Catalog) ListDocumentsByStatus(ctx context.Context, status models.VerificationStatus) ([]*models.PolicyDocument, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, product_id, doc_type, filename, local_path, source_url, file_hash,
		        file_size, downloaded_at, verification_status, reviewer_notes, pdf_links
		 FROM policy_documents WHERE verification_status = ? ORDER BY downloaded_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.PolicyDocument
	for rows.Next() {
		var d models.PolicyDocument
		var linksJSON sql.NullString
		if err := rows.Scan(&d.ID, &d.ProductID, &d.DocType, &d.Filename, &d.LocalPath,
			&d.SourceURL, &d.FileHash, &d.FileSize, &d.DownloadedAt,
			&d.VerificationStatus, &d.ReviewerNotes, &linksJSON); err != nil {
			return nil, err
		}
		if linksJSON.Valid && linksJSON.String != "" {
			_ = json.Unmarshal([]byte(linksJSON.String), &d.PDFLinks)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document. Chunks and rate-table records cascade.
func (c *Catalog) DeleteDocument(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM policy_documents WHERE id = ?`, id)
	return err
}

// setStatus applies a verification transition after checking it against the
// document's state machine. notes replace reviewer_notes when non-empty.
func (c *Catalog) setStatus(ctx context.Context, id string, next models.VerificationStatus, notes string) error {
	doc, err := c.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.CanTransitionTo(next) {
		return clauseerr.New(clauseerr.InvalidInput, "catalog.setStatus",
			fmt.Errorf("illegal transition %s -> %s for document %s", doc.VerificationStatus, next, id))
	}
	if notes == "" {
		notes = doc.ReviewerNotes
	}
	_, err = c.db.ExecContext(ctx,
		`UPDATE policy_documents SET verification_status = ?, reviewer_notes = ? WHERE id = ?`,
		next, notes, id)
	return err
}

// MarkVerified transitions a PENDING document to VERIFIED, making it
// eligible for indexing.
func (c *Catalog) MarkVerified(ctx context.Context, id, notes string) error {
	return c.setStatus(ctx, id, models.StatusVerified, notes)
}

// MarkRejected transitions a PENDING document to REJECTED.
func (c *Catalog) MarkRejected(ctx context.Context, id, notes string) error {
	return c.setStatus(ctx, id, models.StatusRejected, notes)
}

// Resubmit transitions a REJECTED document back to PENDING for re-review.
func (c *Catalog) Resubmit(ctx context.Context, id string) error {
	return c.setStatus(ctx, id, models.StatusPending, "")
}

// RecordParseFailure leaves a document PENDING with reviewer_notes
// populated from the per-document ingestion failure.
func (c *Catalog) RecordParseFailure(ctx context.Context, id string, cause error) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE policy_documents SET reviewer_notes = ? WHERE id = ?`,
		fmt.Sprintf("parse failure: %v", cause), id)
	return err
}

// CountDocuments returns the number of policy documents.
func (c *Catalog) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_documents`).Scan(&n)
	return n, err
}

// SaveRateTable inserts or replaces a rate-table record.
func (c *Catalog) SaveRateTable(ctx context.Context, rt *models.RateTable) error {
	headersJSON, err := json.Marshal(rt.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rate_tables
		 (uuid, source_document_id, page_range_start, page_range_end, headers,
		  row_count, col_count, csv_path, product_code, table_type, extraction_confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.UUID, rt.SourceDocumentID, rt.PageRangeStart, rt.PageRangeEnd, string(headersJSON),
		rt.RowCount, rt.ColCount, rt.CSVPath, rt.ProductCode, rt.TableType, rt.ExtractionConfidence, rt.CreatedAt,
	)
	return err
}

// GetRateTable returns a rate-table record by uuid.
func (c *Catalog) GetRateTable(ctx context.Context, id string) (*models.RateTable, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT uuid, source_document_id, page_range_start, page_range_end, headers,
		        row_count, col_count, csv_path, product_code, table_type, extraction_confidence, created_at
		 FROM rate_tables WHERE uuid = ?`, id)
	rt, err := scanRateTable(row.Scan)
	if err == sql.ErrNoRows {
		return nil, clauseerr.New(clauseerr.NotFound, "catalog.GetRateTable", fmt.Errorf("rate table not found: %s", id))
	}
	return rt, err
}

// RateTablesByDocument returns the rate tables extracted from a document.
func (c *Catalog) RateTablesByDocument(ctx context.Context, documentID string) ([]*models.RateTable, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT uuid, source_document_id, page_range_start, page_range_end, headers,
		        row_count, col_count, csv_path, product_code, table_type, extraction_confidence, created_at
		 FROM rate_tables WHERE source_document_id = ? ORDER BY page_range_start`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []*models.RateTable
	for rows.Next() {
		rt, err := scanRateTable(rows.Scan)
		if err != nil {
			return nil, err
		}
		tables = append(tables, rt)
	}
	return tables, rows.Err()
}

func scanRateTable(scan func(dest ...any) error) (*models.RateTable, error) {
	var rt models.RateTable
	var headersJSON sql.NullString
	var created sql.NullTime
	err := scan(&rt.UUID, &rt.SourceDocumentID, &rt.PageRangeStart, &rt.PageRangeEnd, &headersJSON,
		&rt.RowCount, &rt.ColCount, &rt.CSVPath, &rt.ProductCode, &rt.TableType, &rt.ExtractionConfidence, &created)
	if err != nil {
		return nil, err
	}
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &rt.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}
	if created.Valid {
		rt.CreatedAt = created.Time
	}
	return &rt, nil
}
