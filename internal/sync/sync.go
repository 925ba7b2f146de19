// Package sync drives the batch ingestion of EDINET large-shareholding
// filings: a date-windowed crawl that resolves filers/issuers and records
// filings, and a second pass that downloads CSV attachments and extracts
// holding figures.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/edinet-watch/holdings/internal/edinet"
	"github.com/edinet-watch/holdings/internal/extract"
	"github.com/edinet-watch/holdings/internal/models"
)

// Large-shareholding reports file under ordinance 060.
const DefaultOrdinanceCode = "060"

// Client is the EDINET surface the orchestrator consumes.
type Client interface {
	ListDocumentsRaw(ctx context.Context, date time.Time) ([]byte, error)
	DownloadCSV(ctx context.Context, docID string) ([]byte, error)
}

// Config carries the per-batch settings; nothing here is ambient state.
type Config struct {
	// Days is the size of the crawl window, ending today, inclusive.
	Days int
	// FilerCode restricts the crawl to one submitting organization.
	FilerCode string
	// OrdinanceCode is the document family to ingest; defaults to
	// DefaultOrdinanceCode.
	OrdinanceCode string
	// UseCache enables the day-scoped listing cache.
	UseCache bool
	// Limit caps the extraction pass, for trial runs. 0 means no cap.
	Limit int
	// Year restricts the extraction pass to one submission year.
	Year int
}

// Stats summarizes one batch run.
type Stats struct {
	Days        int
	FailedDays  int
	NewFilers   int
	NewIssuers  int
	NewFilings  int
	Extracted   int
	EmptyOrSkip int
}

// Syncer is the batch orchestrator. It is strictly sequential: one listing
// fetch or one attachment download runs to completion before the next, with
// the client's pacing between outbound calls.
type Syncer struct {
	cfg    Config
	client Client
	cache  *edinet.ListCache
	store  Store
}

// NewSyncer wires a batch. cache may be nil when caching is disabled.
func NewSyncer(cfg Config, client Client, cache *edinet.ListCache, store Store) *Syncer {
	if cfg.OrdinanceCode == "" {
		cfg.OrdinanceCode = DefaultOrdinanceCode
	}
	return &Syncer{cfg: cfg, client: client, cache: cache, store: store}
}

// SyncDocuments crawls the date window oldest-first, recording filings and
// resolving entities. A day whose fetch fails is logged and skipped; only a
// store failure aborts the batch, leaving prior days committed.
func (s *Syncer) SyncDocuments(ctx context.Context) (Stats, error) {
	var stats Stats

	end := time.Now()
	start := end.AddDate(0, 0, -s.cfg.Days)

	resolver := NewResolver()
	recorder := NewRecorder()

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		stats.Days++

		raw, ok := s.cachedListing(d)
		if !ok {
			var err error
			raw, err = s.client.ListDocumentsRaw(ctx, d)
			if err != nil {
				log.Printf("listing fetch failed for %s: %v", d.Format("2006-01-02"), err)
				stats.FailedDays++
				continue
			}
			s.storeListing(d, raw)
		}

		var resp edinet.ListResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Printf("listing parse failed for %s: %v", d.Format("2006-01-02"), err)
			stats.FailedDays++
			continue
		}
		if resp.Results == nil {
			// No filings that day.
			continue
		}

		err := s.store.WithTx(ctx, func(txStore Store) error {
			return s.processDay(ctx, txStore, resolver, recorder, resp.Results, &stats)
		})
		if err != nil {
			return stats, fmt.Errorf("processing %s: %w", d.Format("2006-01-02"), err)
		}
	}

	return stats, nil
}

func (s *Syncer) cachedListing(date time.Time) ([]byte, bool) {
	if !s.cfg.UseCache || s.cache == nil {
		return nil, false
	}
	return s.cache.Get(date)
}

func (s *Syncer) storeListing(date time.Time, raw []byte) {
	if !s.cfg.UseCache || s.cache == nil {
		return
	}
	if err := s.cache.Set(date, raw); err != nil {
		log.Printf("caching listing for %s: %v", date.Format("2006-01-02"), err)
	}
}

// processDay runs one day's candidates through the resolver and recorder in
// source-listing order, inside one transaction.
func (s *Syncer) processDay(ctx context.Context, store Store, resolver *Resolver, recorder *Recorder, docs []edinet.Document, stats *Stats) error {
	for i := range docs {
		doc := &docs[i]

		if doc.OrdinanceCode != s.cfg.OrdinanceCode {
			continue
		}
		if s.cfg.FilerCode != "" && doc.EdinetCode != s.cfg.FilerCode {
			continue
		}
		if doc.DocID == "" || doc.EdinetCode == "" {
			continue
		}

		filer, created, err := resolver.ResolveFiler(ctx, store, doc.EdinetCode, doc.FilerName, doc.SecCodePtr(), doc.JCNPtr())
		if err != nil {
			return err
		}
		if created {
			stats.NewFilers++
		}

		var issuer *models.Issuer
		if doc.IssuerEdinetCode != "" {
			var createdIssuer bool
			issuer, createdIssuer, err = resolver.ResolveIssuer(ctx, store, doc.IssuerEdinetCode)
			if err != nil {
				return err
			}
			if createdIssuer {
				stats.NewIssuers++
			}
		}

		_, createdFiling, err := recorder.RecordFiling(ctx, store, doc, filer, issuer)
		if err != nil {
			return err
		}
		if createdFiling {
			stats.NewFilings++
		}
	}
	return nil
}

// SyncHoldingDetails downloads the CSV archive for every recorded filing
// that offers one and has no HoldingDetail yet, and extracts holding
// figures. Each processed filing gets exactly one detail row, possibly
// all-null; a failed download is logged and the filing left for a later
// run.
func (s *Syncer) SyncHoldingDetails(ctx context.Context) (Stats, error) {
	var stats Stats

	filings, err := s.store.FilingsMissingHoldingDetail(ctx, FilingFilter{
		FilerEdinetCode: s.cfg.FilerCode,
		Year:            s.cfg.Year,
		Limit:           s.cfg.Limit,
	})
	if err != nil {
		return stats, fmt.Errorf("selecting filings for extraction: %w", err)
	}

	log.Printf("extracting holding details for %d filings", len(filings))

	err = s.store.WithTx(ctx, func(txStore Store) error {
		for i := range filings {
			filing := &filings[i]

			raw, err := s.client.DownloadCSV(ctx, filing.DocID)
			if err != nil {
				log.Printf("download failed for %s: %v", filing.DocID, err)
				stats.EmptyOrSkip++
				continue
			}

			res := extract.ExtractHoldings(extract.DecodeTables(raw))

			detail := &models.HoldingDetail{
				FilingID:     filing.ID,
				SharesHeld:   res.SharesHeld,
				HoldingRatio: res.HoldingRatio,
				Purpose:      res.Purpose,
			}
			if err := txStore.CreateHoldingDetail(ctx, detail); err != nil {
				return err
			}

			if detail.Empty() {
				stats.EmptyOrSkip++
			} else {
				stats.Extracted++
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("extraction pass: %w", err)
	}

	return stats, nil
}

// PurgeEmptyHoldingDetails deletes all-null details so the next holdings
// pass retries those filings.
func (s *Syncer) PurgeEmptyHoldingDetails(ctx context.Context) (int64, error) {
	return s.store.PurgeEmptyHoldingDetails(ctx)
}
