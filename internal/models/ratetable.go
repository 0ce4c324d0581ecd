package models

import "time"

// TableType classifies a RateTable by what it tabulates.
type TableType string

const (
	TableRate     TableType = "rate"
	TableBenefit  TableType = "benefit"
	TableOrdinary TableType = "ordinary"
)

// RateTable is a table classified as numeric/rate-bearing, extracted from a
// PolicyDocument. Rate tables are never embedded; they exist as sidecar CSVs
// addressable by UUID and are referenced from PolicyChunk.TableRefs.
type RateTable struct {
	UUID                 string    `json:"uuid"`
	SourceDocumentID     string    `json:"source_document_id"`
	PageRangeStart       int       `json:"page_range_start"`
	PageRangeEnd         int       `json:"page_range_end"`
	Headers              []string  `json:"headers"`
	RowCount             int       `json:"row_count"`
	ColCount             int       `json:"col_count"`
	CSVPath              string    `json:"csv_path"`
	ProductCode          string    `json:"product_code"`
	TableType            TableType `json:"table_type"`
	ExtractionConfidence float64   `json:"extraction_confidence"`
	CreatedAt            time.Time `json:"created_at"`
}
