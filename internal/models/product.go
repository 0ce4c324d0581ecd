// Package models defines the core data model: Product, PolicyDocument,
// RateTable, and PolicyChunk, plus the tool-layer request/response records.
package models

import "time"

// Product is a logical insurance product. Created on first discovery by the
// offline discovery layer; never mutated by the retrieval core.
type Product struct {
	ID          string    `json:"id"`
	ProductCode string    `json:"product_code"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	Category    string    `json:"category"`
	PublishTime time.Time `json:"publish_time"`
}

// VerificationStatus is the state of a PolicyDocument's human review.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusVerified VerificationStatus = "VERIFIED"
	StatusRejected VerificationStatus = "REJECTED"
)

// PolicyDocument is one PDF belonging to a Product. Only VERIFIED documents
// may be ingested into the chunk store.
type PolicyDocument struct {
	ID                 string             `json:"id"`
	ProductID          string             `json:"product_id"`
	DocType            string             `json:"doc_type"`
	Filename           string             `json:"filename"`
	LocalPath          string             `json:"local_path"`
	SourceURL          string             `json:"source_url"`
	FileHash           string             `json:"file_hash"`
	FileSize           int64              `json:"file_size"`
	DownloadedAt       time.Time          `json:"downloaded_at"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ReviewerNotes      string             `json:"reviewer_notes"`
	PDFLinks           map[string]string  `json:"pdf_links"`
}

// CanTransitionTo reports whether the verification status machine allows the
// transition from the document's current status to next.
func (d *PolicyDocument) CanTransitionTo(next VerificationStatus) bool {
	switch d.VerificationStatus {
	case StatusPending:
		return next == StatusVerified || next == StatusRejected
	case StatusRejected:
		return next == StatusPending
	case StatusVerified:
		return false
	default:
		return false
	}
}
