package sync

import (
	"context"

	"github.com/edinet-watch/holdings/internal/models"
)

// FilingFilter narrows the extraction pass to a subset of filings.
type FilingFilter struct {
	// FilerEdinetCode restricts to filings submitted under one EDINET code.
	FilerEdinetCode string
	// Year restricts to filings submitted in one calendar year.
	Year int
	// Limit caps the number of filings returned; 0 means no cap.
	Limit int
}

// Store is the entity-store surface the pipeline consumes. Lookups return
// (nil, nil) when no row matches. Implementations must enforce uniqueness of
// EDINET codes and document IDs at the storage layer; the pipeline's
// in-batch de-duplication only avoids redundant round trips.
type Store interface {
	// FilerByEdinetCode resolves a filer through any of its codes.
	FilerByEdinetCode(ctx context.Context, edinetCode string) (*models.Filer, error)
	// CreateFilerWithCode creates a filer together with its first FilerCode
	// in one atomic unit; a filer without a code must never be observable.
	CreateFilerWithCode(ctx context.Context, filer *models.Filer, edinetCode string) error

	IssuerByEdinetCode(ctx context.Context, edinetCode string) (*models.Issuer, error)
	CreateIssuer(ctx context.Context, issuer *models.Issuer) error
	ListIssuers(ctx context.Context) ([]models.Issuer, error)
	// UpdateIssuerName back-fills an issuer's display name and securities
	// code; idempotent when the stored values already match.
	UpdateIssuerName(ctx context.Context, id int64, name string, secCode *string) error

	FilingByDocID(ctx context.Context, docID string) (*models.Filing, error)
	CreateFiling(ctx context.Context, filing *models.Filing) error
	// FilingsMissingHoldingDetail selects csv-flagged filings that have no
	// HoldingDetail yet, newest first.
	FilingsMissingHoldingDetail(ctx context.Context, f FilingFilter) ([]models.Filing, error)

	CreateHoldingDetail(ctx context.Context, d *models.HoldingDetail) error
	// PurgeEmptyHoldingDetails deletes all-null details so the next
	// extraction pass can retry those filings. Explicit opt-in: an all-null
	// detail is otherwise a terminal, meaningful state.
	PurgeEmptyHoldingDetails(ctx context.Context) (int64, error)

	// WithTx runs fn against a transactional view of the store; fn's error
	// rolls the unit back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
