package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/docid"
	"github.com/clausevault/clausevault/internal/models"
)

// RegisterPDF records a PDF from the raw intake tree as a PENDING
// PolicyDocument, creating its Product on first discovery. The path must
// follow the {raw}/{company}/{product_code}/{doc_type}.pdf layout. Returns
// the document ID (stable for the path) whether created now or already
// known; registration never indexes anything. Only a human marking the
// document VERIFIED makes it eligible.
func (p *Pipeline) RegisterPDF(ctx context.Context, path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	company, productCode, docType, err := splitRawPath(absPath)
	if err != nil {
		return "", err
	}

	documentID := docid.FromPath(absPath)
	if _, err := p.catalog.GetDocument(ctx, documentID); err == nil {
		return documentID, nil
	}

	product, err := p.catalog.GetProductByCode(ctx, productCode)
	if clauseerr.Is(err, clauseerr.NotFound) {
		product = &models.Product{
			ID:          uuid.New().String(),
			ProductCode: productCode,
			Name:        productCode, // refined by the discovery layer later
			Company:     company,
		}
		if err := p.catalog.CreateProduct(ctx, product); err != nil {
			return "", fmt.Errorf("create product: %w", err)
		}
	} else if err != nil {
		return "", err
	}

	hash, size, err := hashFile(absPath)
	if err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	doc := &models.PolicyDocument{
		ID:        documentID,
		ProductID: product.ID,
		DocType:   docType,
		Filename:  filepath.Base(absPath),
		LocalPath: absPath,
		FileHash:  hash,
		FileSize:  size,
	}
	if err := p.catalog.CreateDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if p.logger != nil {
		p.logger.Debug("ingest: document registered",
			zap.String("document_id", documentID),
			zap.String("company", company),
			zap.String("product_code", productCode))
	}
	return documentID, nil
}

// splitRawPath extracts (company, product_code, doc_type) from the last
// three elements of a raw-tree path: .../{company}/{product_code}/{doc_type}.pdf.
func splitRawPath(absPath string) (company, productCode, docType string, err error) {
	dir, file := filepath.Split(absPath)
	ext := filepath.Ext(file)
	if !strings.EqualFold(ext, ".pdf") {
		return "", "", "", clauseerr.New(clauseerr.InvalidInput, "ingest.RegisterPDF",
			fmt.Errorf("not a PDF: %s", file))
	}
	docType = strings.TrimSuffix(file, ext)
	dir = filepath.Clean(dir)
	productCode = filepath.Base(dir)
	company = filepath.Base(filepath.Dir(dir))
	if company == "" || company == "." || company == string(filepath.Separator) ||
		productCode == "" || productCode == "." || docType == "" {
		return "", "", "", clauseerr.New(clauseerr.InvalidInput, "ingest.RegisterPDF",
			fmt.Errorf("path %s does not follow raw/{company}/{product_code}/{doc_type}.pdf", absPath))
	}
	return company, productCode, docType, nil
}

func hashFile(path string) (hash string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
