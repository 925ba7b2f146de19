package sync

import (
	"context"
	"fmt"

	"github.com/edinet-watch/holdings/internal/edinet"
	"github.com/edinet-watch/holdings/internal/models"
)

// Recorder records one Filing per unique document ID. This is the single
// de-duplication point of the pipeline: the doc ID is checked against a
// per-run working set and the persisted store before anything is written.
type Recorder struct {
	seen map[string]bool
}

// NewRecorder creates a recorder with an empty working set.
func NewRecorder() *Recorder {
	return &Recorder{seen: make(map[string]bool)}
}

// RecordFiling returns the filing for doc, creating it when the doc ID is
// new. The created flag is false for an already-known document, in which
// case no mutation happens. Metadata is captured verbatim; a missing
// submission timestamp stays nil.
func (rec *Recorder) RecordFiling(ctx context.Context, store Store, doc *edinet.Document, filer *models.Filer, issuer *models.Issuer) (*models.Filing, bool, error) {
	existing, err := store.FilingByDocID(ctx, doc.DocID)
	if err != nil {
		return nil, false, fmt.Errorf("looking up filing %s: %w", doc.DocID, err)
	}
	if existing != nil || rec.seen[doc.DocID] {
		rec.seen[doc.DocID] = true
		return existing, false, nil
	}
	rec.seen[doc.DocID] = true

	filing := &models.Filing{
		DocID:          doc.DocID,
		FilerID:        filer.ID,
		DocType:        doc.FormCodePtr(),
		DocDescription: doc.DocDescriptionPtr(),
		SubmitDate:     doc.SubmitDate(),
		ParentDocID:    doc.ParentDocIDPtr(),
		CSVFlag:        doc.HasCSV(),
		XBRLFlag:       doc.HasXBRL(),
		PDFFlag:        doc.HasPDF(),
	}
	if issuer != nil {
		filing.IssuerID = &issuer.ID
	}

	if err := store.CreateFiling(ctx, filing); err != nil {
		return nil, false, fmt.Errorf("creating filing %s: %w", doc.DocID, err)
	}
	return filing, true, nil
}
