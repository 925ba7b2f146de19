package models

import (
	"time"
)

// Filer is an entity that submits large-shareholding disclosures.
// It is the aggregate root over its EDINET codes: one filer may have filed
// under several codes over the years, and each code belongs to exactly one
// filer.
type Filer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SecCode   *string   `json:"sec_code"`
	JCN       *string   `json:"jcn"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Codes are ordered by creation; the first one is the primary code.
	Codes []FilerCode `json:"codes,omitempty"`
}

// PrimaryCode returns the filer's first-created EDINET code, or "" when the
// codes have not been loaded.
func (f *Filer) PrimaryCode() string {
	if len(f.Codes) == 0 {
		return ""
	}
	return f.Codes[0].EdinetCode
}

// FilerCode is one EDINET code a filer has submitted under. EDINET codes are
// globally unique across filers.
type FilerCode struct {
	ID         int64     `json:"id"`
	FilerID    int64     `json:"filer_id"`
	EdinetCode string    `json:"edinet_code"`
	Name       *string   `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Issuer is the company whose securities a filing reports holdings in.
// Created lazily the first time a filing references its code; the name is
// back-filled later from the EDINET code list, not from the filing feed.
type Issuer struct {
	ID         int64     `json:"id"`
	EdinetCode string    `json:"edinet_code"`
	Name       *string   `json:"name"`
	SecCode    *string   `json:"sec_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Filing is one disclosure document. DocID is the immutable business key:
// re-ingesting a known DocID is a no-op.
type Filing struct {
	ID             int64      `json:"id"`
	DocID          string     `json:"doc_id"`
	FilerID        int64      `json:"filer_id"`
	IssuerID       *int64     `json:"issuer_id"`
	DocType        *string    `json:"doc_type"`
	DocDescription *string    `json:"doc_description"`
	SubmitDate     *time.Time `json:"submit_date"`
	ParentDocID    *string    `json:"parent_doc_id"`
	CSVFlag        bool       `json:"csv_flag"`
	XBRLFlag       bool       `json:"xbrl_flag"`
	PDFFlag        bool       `json:"pdf_flag"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HoldingDetail is the payload extracted from a filing's CSV attachment.
// All three value fields may be nil at once: extraction ran and found
// nothing, which is a recorded outcome, not an error.
type HoldingDetail struct {
	ID           int64     `json:"id"`
	FilingID     int64     `json:"filing_id"`
	SharesHeld   *int64    `json:"shares_held"`
	HoldingRatio *float64  `json:"holding_ratio"`
	Purpose      *string   `json:"purpose"`
	CreatedAt    time.Time `json:"created_at"`
}

// Empty reports whether extraction found no value at all.
func (h *HoldingDetail) Empty() bool {
	return h.SharesHeld == nil && h.HoldingRatio == nil && h.Purpose == nil
}
