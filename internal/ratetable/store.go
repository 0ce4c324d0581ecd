// Package ratetable reads and manages the rate-table sidecar directory:
// the {uuid}.csv files and metadata.json the parser exports. Sidecars
// outlive chunks and are garbage-collected only when their owning document
// is deleted.
package ratetable

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is one entry of the sidecar metadata.json array.
type Record struct {
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

// Store manages the sidecar export directory.
type Store struct {
	dir string
}

// NewStore returns a Store over dir (TABLE_EXPORT_DIR).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.dir, "metadata.json")
}

// Load returns every metadata record, or an empty slice if no sidecars have
// been written yet.
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.metadataPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse metadata.json: %w", err)
	}
	return records, nil
}

// Get returns the metadata record for uuid.
func (s *Store) Get(uuid string) (*Record, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].UUID == uuid {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("rate table not found: %s", uuid)
}

// ReadCSV loads back a sidecar's (headers, rows).
func (s *Store) ReadCSV(uuid string) (headers []string, rows [][]string, err error) {
	f, err := os.Open(filepath.Join(s.dir, uuid+".csv"))
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

// DeleteBySourcePDF removes every sidecar CSV extracted from sourcePDF and
// drops their metadata records, rewriting metadata.json via temp + rename.
// Called when the owning document is deleted; sidecars are never collected
// while their document exists, even if no chunk references them.
func (s *Store) DeleteBySourcePDF(sourcePDF string) error {
	records, err := s.Load()
	if err != nil {
		return err
	}
	kept := records[:0]
	var removed []Record
	for _, r := range records {
		if r.SourcePDF == sourcePDF {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 {
		return nil
	}
	for _, r := range removed {
		if err := os.Remove(filepath.Join(s.dir, r.UUID+".csv")); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return s.rewrite(kept)
}

func (s *Store) rewrite(records []Record) error {
	tmp, err := os.CreateTemp(s.dir, "metadata-*.json.tmp")
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
	return os.Rename(tmpName, s.metadataPath())
}
