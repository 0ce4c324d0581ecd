package parse

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/models"
)

// tableMetadataRecord is one entry of the sidecar metadata.json array.
type tableMetadataRecord struct {
	UUID                 string    `json:"uuid"`
	SourcePDF            string    `json:"source_pdf"`
	PageRangeStart       int       `json:"page_range_start"`
	PageRangeEnd         int       `json:"page_range_end"`
	ProductCode          string    `json:"product_code"`
	TableType            string    `json:"table_type"`
	CSVPath              string    `json:"csv_path"`
	Headers              []string  `json:"headers"`
	RowCount             int       `json:"row_count"`
	ColCount             int       `json:"col_count"`
	ExtractionConfidence float64   `json:"extraction_confidence"`
	CreatedAt            time.Time `json:"created_at"`
}

// WriteRateTableSidecar writes {uuid}.csv under exportDir and appends a
// metadata record to metadata.json, using write-temp-then-rename so the
// append is atomic. It returns the populated RateTable record.
func WriteRateTableSidecar(exportDir, sourceDocumentID, sourcePDF, productCode string, page int, headers []string, rows [][]string, confidence float64) (*models.RateTable, error) {
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, clauseerr.New(clauseerr.InternalError, "parse.WriteRateTableSidecar", err)
	}

	id := uuid.New().String()
	csvPath := filepath.Join(exportDir, id+".csv")
	if err := writeCSV(csvPath, headers, rows); err != nil {
		return nil, clauseerr.New(clauseerr.InternalError, "parse.WriteRateTableSidecar", err)
	}

	rt := &models.RateTable{
		UUID:                 id,
		SourceDocumentID:     sourceDocumentID,
		PageRangeStart:       page,
		PageRangeEnd:         page,
		Headers:              headers,
		RowCount:             len(rows),
		ColCount:             len(headers),
		CSVPath:              csvPath,
		ProductCode:          productCode,
		TableType:            models.TableRate,
		ExtractionConfidence: confidence,
		CreatedAt:            time.Now(),
	}

	record := tableMetadataRecord{
		UUID:                 rt.UUID,
		SourcePDF:            sourcePDF,
		PageRangeStart:       rt.PageRangeStart,
		PageRangeEnd:         rt.PageRangeEnd,
		ProductCode:          rt.ProductCode,
		TableType:            string(rt.TableType),
		CSVPath:              rt.CSVPath,
		Headers:              rt.Headers,
		RowCount:             rt.RowCount,
		ColCount:             rt.ColCount,
		ExtractionConfidence: rt.ExtractionConfidence,
		CreatedAt:            rt.CreatedAt,
	}
	if err := appendMetadataRecord(filepath.Join(exportDir, "metadata.json"), record); err != nil {
		return nil, clauseerr.New(clauseerr.InternalError, "parse.WriteRateTableSidecar", err)
	}
	return rt, nil
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// appendMetadataRecord loads the existing metadata.json array (if any),
// appends record, and writes it back via a temp file + rename so concurrent
// readers never observe a partially written array.
func appendMetadataRecord(path string, record tableMetadataRecord) error {
	var records []tableMetadataRecord
	if existing, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(existing, &records); err != nil {
			return fmt.Errorf("parse existing metadata.json: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	records = append(records, record)

	tmp, err := os.CreateTemp(filepath.Dir(path), "metadata-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadRateTableCSV loads back a sidecar CSV's (headers, rows).
func ReadRateTableCSV(csvPath string) (headers []string, rows [][]string, err error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}
