// Command sync runs the EDINET batch pipeline: the date-windowed document
// crawl by default, the holdings extraction pass with -holdings, and the
// issuer-name back-fill with -update-names.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/edinet-watch/holdings/internal/db"
	"github.com/edinet-watch/holdings/internal/edinet"
	"github.com/edinet-watch/holdings/internal/sync"
)

func main() {
	days := flag.Int("days", 365, "size of the crawl window in days")
	filerCode := flag.String("filer", "", "restrict to one filer EDINET code (e.g. E04948)")
	noCache := flag.Bool("no-cache", false, "disable the daily listing cache")
	holdings := flag.Bool("holdings", false, "run the holdings extraction pass instead of the crawl")
	updateNames := flag.Bool("update-names", false, "back-fill issuer names from the EDINET code list")
	retryEmpty := flag.Bool("retry-empty", false, "purge all-null holding details before the extraction pass")
	limit := flag.Int("limit", 0, "cap the extraction pass (0 = no cap)")
	year := flag.Int("year", 0, "restrict the extraction pass to one submission year")
	codeList := flag.String("codelist", "EdinetcodeDlInfo.csv", "path to the EDINET code list CSV")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx := context.Background()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	apiKey := os.Getenv("EDINET_API_KEY")
	if apiKey == "" && !*updateNames {
		log.Fatal("EDINET_API_KEY environment variable is required")
	}

	if err := db.RunMigrations(databaseURL); err != nil {
		log.Fatalf("Could not run migrations: %v", err)
	}

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer pool.Close()

	repo := db.NewRepository(pool)
	client := edinet.NewClient(apiKey)

	cfg := sync.Config{
		Days:      *days,
		FilerCode: *filerCode,
		UseCache:  !*noCache,
		Limit:     *limit,
		Year:      *year,
	}

	var cache *edinet.ListCache
	if cfg.UseCache {
		cacheDir := os.Getenv("CACHE_DIR")
		if cacheDir == "" {
			cacheDir = "cache"
		}
		cache, err = edinet.NewListCache(cacheDir)
		if err != nil {
			log.Fatalf("Could not create cache: %v", err)
		}
	}

	syncer := sync.NewSyncer(cfg, client, cache, repo)

	switch {
	case *updateNames:
		updated, err := syncer.SyncIssuerNames(ctx, *codeList)
		if err != nil {
			log.Fatalf("Issuer name sync failed: %v", err)
		}
		log.Printf("Updated %d issuers with names", updated)

	case *holdings:
		if *retryEmpty {
			purged, err := syncer.PurgeEmptyHoldingDetails(ctx)
			if err != nil {
				log.Fatalf("Purging empty details failed: %v", err)
			}
			log.Printf("Purged %d empty holding details", purged)
		}
		stats, err := syncer.SyncHoldingDetails(ctx)
		if err != nil {
			log.Fatalf("Holdings sync failed: %v", err)
		}
		log.Printf("Holdings sync complete: extracted=%d empty/skipped=%d", stats.Extracted, stats.EmptyOrSkip)

	default:
		stats, err := syncer.SyncDocuments(ctx)
		if err != nil {
			log.Fatalf("Document sync failed: %v", err)
		}
		log.Printf("Sync complete: days=%d failed=%d new filers=%d new issuers=%d new filings=%d",
			stats.Days, stats.FailedDays, stats.NewFilers, stats.NewIssuers, stats.NewFilings)
	}
}
