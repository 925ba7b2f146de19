package sync

import (
	"context"
	"fmt"

	"github.com/edinet-watch/holdings/internal/models"
)

// Resolver maps EDINET codes to canonical Filer/Issuer aggregates,
// create-if-absent. A per-run cache answers repeat codes without a store
// round trip; the store's unique indexes are the source of truth across
// runs. The store is passed per call so one resolver can span the batch's
// transactions.
type Resolver struct {
	filers  map[string]*models.Filer
	issuers map[string]*models.Issuer
}

// NewResolver creates a resolver with empty per-run caches.
func NewResolver() *Resolver {
	return &Resolver{
		filers:  make(map[string]*models.Filer),
		issuers: make(map[string]*models.Issuer),
	}
}

// ResolveFiler returns the filer owning edinetCode, creating it (with its
// first FilerCode) when unknown. Attributes of an existing filer are never
// overwritten by later observations; name back-fill is a separate pass.
// The second return reports whether a filer was created.
func (r *Resolver) ResolveFiler(ctx context.Context, store Store, edinetCode, name string, secCode, jcn *string) (*models.Filer, bool, error) {
	if f, ok := r.filers[edinetCode]; ok {
		return f, false, nil
	}

	f, err := store.FilerByEdinetCode(ctx, edinetCode)
	if err != nil {
		return nil, false, fmt.Errorf("looking up filer %s: %w", edinetCode, err)
	}
	if f != nil {
		r.filers[edinetCode] = f
		return f, false, nil
	}

	f = &models.Filer{
		Name:    name,
		SecCode: secCode,
		JCN:     jcn,
	}
	if err := store.CreateFilerWithCode(ctx, f, edinetCode); err != nil {
		return nil, false, fmt.Errorf("creating filer %s: %w", edinetCode, err)
	}

	r.filers[edinetCode] = f
	return f, true, nil
}

// ResolveIssuer returns the issuer with edinetCode, creating it when
// unknown. The name is left null at creation: issuer names come from the
// EDINET code list, not from the filing feed.
func (r *Resolver) ResolveIssuer(ctx context.Context, store Store, edinetCode string) (*models.Issuer, bool, error) {
	if is, ok := r.issuers[edinetCode]; ok {
		return is, false, nil
	}

	is, err := store.IssuerByEdinetCode(ctx, edinetCode)
	if err != nil {
		return nil, false, fmt.Errorf("looking up issuer %s: %w", edinetCode, err)
	}
	if is != nil {
		r.issuers[edinetCode] = is
		return is, false, nil
	}

	is = &models.Issuer{EdinetCode: edinetCode}
	if err := store.CreateIssuer(ctx, is); err != nil {
		return nil, false, fmt.Errorf("creating issuer %s: %w", edinetCode, err)
	}

	r.issuers[edinetCode] = is
	return is, true, nil
}
