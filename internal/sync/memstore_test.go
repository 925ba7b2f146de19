package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/edinet-watch/holdings/internal/models"
)

// memStore is an in-memory Store used to exercise the pipeline without
// Postgres. It enforces the same uniqueness rules as the schema.
type memStore struct {
	nextID     int64
	filerByID  map[int64]*models.Filer
	codeOwner  map[string]int64 // edinet code -> filer id
	codeCount  int
	issuers    map[string]*models.Issuer
	filings    map[string]*models.Filing
	details    map[int64]*models.HoldingDetail // by filing id
}

func newMemStore() *memStore {
	return &memStore{
		filerByID: make(map[int64]*models.Filer),
		codeOwner: make(map[string]int64),
		issuers:   make(map[string]*models.Issuer),
		filings:   make(map[string]*models.Filing),
		details:   make(map[int64]*models.HoldingDetail),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) FilerByEdinetCode(_ context.Context, code string) (*models.Filer, error) {
	filerID, ok := m.codeOwner[code]
	if !ok {
		return nil, nil
	}
	return m.filerByID[filerID], nil
}

func (m *memStore) CreateFilerWithCode(_ context.Context, filer *models.Filer, edinetCode string) error {
	if _, exists := m.codeOwner[edinetCode]; exists {
		return fmt.Errorf("duplicate edinet code %s", edinetCode)
	}
	filer.ID = m.id()
	filer.Codes = []models.FilerCode{{
		ID:         m.id(),
		FilerID:    filer.ID,
		EdinetCode: edinetCode,
		Name:       &filer.Name,
	}}
	m.filerByID[filer.ID] = filer
	m.codeOwner[edinetCode] = filer.ID
	m.codeCount++
	return nil
}

func (m *memStore) IssuerByEdinetCode(_ context.Context, code string) (*models.Issuer, error) {
	return m.issuers[code], nil
}

func (m *memStore) CreateIssuer(_ context.Context, issuer *models.Issuer) error {
	if _, exists := m.issuers[issuer.EdinetCode]; exists {
		return fmt.Errorf("duplicate issuer code %s", issuer.EdinetCode)
	}
	issuer.ID = m.id()
	m.issuers[issuer.EdinetCode] = issuer
	return nil
}

func (m *memStore) ListIssuers(_ context.Context) ([]models.Issuer, error) {
	var out []models.Issuer
	for _, is := range m.issuers {
		out = append(out, *is)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateIssuerName(_ context.Context, id int64, name string, secCode *string) error {
	for _, is := range m.issuers {
		if is.ID == id {
			is.Name = &name
			if secCode != nil {
				is.SecCode = secCode
			}
			return nil
		}
	}
	return fmt.Errorf("issuer %d not found", id)
}

func (m *memStore) FilingByDocID(_ context.Context, docID string) (*models.Filing, error) {
	return m.filings[docID], nil
}

func (m *memStore) CreateFiling(_ context.Context, filing *models.Filing) error {
	if _, exists := m.filings[filing.DocID]; exists {
		return fmt.Errorf("duplicate doc id %s", filing.DocID)
	}
	filing.ID = m.id()
	m.filings[filing.DocID] = filing
	return nil
}

func (m *memStore) FilingsMissingHoldingDetail(_ context.Context, f FilingFilter) ([]models.Filing, error) {
	var out []models.Filing
	for _, fl := range m.filings {
		if !fl.CSVFlag {
			continue
		}
		if _, done := m.details[fl.ID]; done {
			continue
		}
		if f.FilerEdinetCode != "" {
			filerID, ok := m.codeOwner[f.FilerEdinetCode]
			if !ok || fl.FilerID != filerID {
				continue
			}
		}
		if f.Year != 0 {
			if fl.SubmitDate == nil || fl.SubmitDate.Year() != f.Year {
				continue
			}
		}
		out = append(out, *fl)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := timeOrZero(out[i].SubmitDate), timeOrZero(out[j].SubmitDate)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (m *memStore) CreateHoldingDetail(_ context.Context, d *models.HoldingDetail) error {
	if _, exists := m.details[d.FilingID]; exists {
		return fmt.Errorf("duplicate holding detail for filing %d", d.FilingID)
	}
	d.ID = m.id()
	m.details[d.FilingID] = d
	return nil
}

func (m *memStore) PurgeEmptyHoldingDetails(_ context.Context) (int64, error) {
	var purged int64
	for filingID, d := range m.details {
		if d.Empty() {
			delete(m.details, filingID)
			purged++
		}
	}
	return purged, nil
}

func (m *memStore) WithTx(_ context.Context, fn func(Store) error) error {
	return fn(m)
}
