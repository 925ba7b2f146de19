package sync

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/edinet-watch/holdings/internal/edinet"
)

// fakeClient serves one canned listing for every date and canned archives
// per doc ID.
type fakeClient struct {
	listing     []byte
	failLists   int // fail the first N listing calls
	listCalls   int
	archives    map[string][]byte
	failDocs    map[string]bool
	docDownloads map[string]int
}

func (f *fakeClient) ListDocumentsRaw(_ context.Context, _ time.Time) ([]byte, error) {
	f.listCalls++
	if f.listCalls <= f.failLists {
		return nil, fmt.Errorf("connection reset")
	}
	return f.listing, nil
}

func (f *fakeClient) DownloadCSV(_ context.Context, docID string) ([]byte, error) {
	if f.docDownloads == nil {
		f.docDownloads = make(map[string]int)
	}
	f.docDownloads[docID]++
	if f.failDocs[docID] {
		return nil, fmt.Errorf("timeout")
	}
	return f.archives[docID], nil
}

func listingJSON(t *testing.T, docs ...edinet.Document) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"metadata": map[string]any{"status": "200"},
		"results":  docs,
	})
	require.NoError(t, err)
	return raw
}

func listingDoc(docID, edinetCode, issuerCode string) edinet.Document {
	return edinet.Document{
		DocID:            docID,
		EdinetCode:       edinetCode,
		FilerName:        "テスト株式会社",
		IssuerEdinetCode: issuerCode,
		OrdinanceCode:    "060",
		FormCode:         "010",
		DocDescription:   "大量保有報告書",
		SubmitDateTime:   "2025-01-15 09:30",
		CSVFlag:          "1",
	}
}

func TestSyncDocumentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	hit := listingDoc("S100XBWO", "E04948", "E00001")
	other := listingDoc("S100ZZZZ", "E04948", "E00001")
	other.OrdinanceCode = "040" // different document family
	client := &fakeClient{listing: listingJSON(t, hit, other, hit)}

	syncer := NewSyncer(Config{Days: 0}, client, nil, store)
	stats, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewFilers)
	assert.Equal(t, 1, stats.NewIssuers)
	assert.Equal(t, 1, stats.NewFilings, "duplicate listing entry must not create a second filing")
	assert.Len(t, store.filings, 1)

	// Re-crawling an already-ingested window creates zero new rows.
	again := NewSyncer(Config{Days: 0}, client, nil, store)
	stats, err = again.SyncDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NewFilers)
	assert.Zero(t, stats.NewIssuers)
	assert.Zero(t, stats.NewFilings)
	assert.Len(t, store.filerByID, 1)
	assert.Equal(t, 1, store.codeCount)
	assert.Len(t, store.issuers, 1)
	assert.Len(t, store.filings, 1)
}

func TestSyncDocumentsNoResults(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	client := &fakeClient{listing: []byte(`{"metadata":{"status":"404"}}`)}

	syncer := NewSyncer(Config{Days: 0}, client, nil, store)
	stats, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err, "a day without results is not an error")
	assert.Zero(t, stats.FailedDays)
	assert.Zero(t, stats.NewFilings)
}

func TestSyncDocumentsFailedDayContinues(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	client := &fakeClient{
		listing:   listingJSON(t, listingDoc("S100XBWO", "E04948", "E00001")),
		failLists: 1,
	}

	syncer := NewSyncer(Config{Days: 1}, client, nil, store) // two-day window
	stats, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Days)
	assert.Equal(t, 1, stats.FailedDays)
	assert.Equal(t, 1, stats.NewFilings, "the surviving day is still processed")
}

func TestSyncDocumentsFilerFilter(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	client := &fakeClient{listing: listingJSON(t, listingDoc("S100XBWO", "E04948", "E00001"))}

	syncer := NewSyncer(Config{Days: 0, FilerCode: "E99999"}, client, nil, store)
	stats, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NewFilings)
}

func TestSyncDocumentsCacheSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	cache, err := edinet.NewListCache(t.TempDir())
	require.NoError(t, err)

	// Pre-seed every day of the window; the client always fails, so any
	// network call would surface as a failed day.
	raw := listingJSON(t, listingDoc("S100XBWO", "E04948", "E00001"))
	now := time.Now()
	require.NoError(t, cache.Set(now, raw))

	client := &fakeClient{failLists: 1 << 30}
	syncer := NewSyncer(Config{Days: 0, UseCache: true}, client, cache, store)

	stats, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.FailedDays)
	assert.Equal(t, 1, stats.NewFilings)
	assert.Zero(t, client.listCalls, "cache hit must skip the network entirely")
}

func utf16Table(t *testing.T, content string) []byte {
	t.Helper()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := io.ReadAll(transform.NewReader(strings.NewReader(content), enc))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("jpcrp.csv")
	require.NoError(t, err)
	_, err = w.Write(encoded)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSyncHoldingDetails(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	client := &fakeClient{
		listing: listingJSON(t,
			listingDoc("S100GOOD", "E04948", "E00001"),
			listingDoc("S100JUNK", "E04948", "E00001"),
			listingDoc("S100FAIL", "E04948", "E00001"),
		),
		archives: map[string][]byte{
			"S100GOOD": utf16Table(t, "項目名\t値\n株券等保有割合（％）\t71.4\n保有株券等の数（総数）\t21,398,920\n保有の目的\t政策投資のため\n"),
			"S100JUNK": []byte("not an archive"),
		},
		failDocs: map[string]bool{"S100FAIL": true},
	}

	syncer := NewSyncer(Config{Days: 0}, client, nil, store)
	_, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err)

	stats, err := syncer.SyncHoldingDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 2, stats.EmptyOrSkip)

	good := store.filings["S100GOOD"]
	detail := store.details[good.ID]
	require.NotNil(t, detail)
	assert.Equal(t, 71.4, *detail.HoldingRatio)
	assert.Equal(t, int64(21398920), *detail.SharesHeld)
	assert.Equal(t, "政策投資のため", *detail.Purpose)

	// The unparsable archive still gets exactly one all-null detail.
	junk := store.filings["S100JUNK"]
	junkDetail := store.details[junk.ID]
	require.NotNil(t, junkDetail)
	assert.True(t, junkDetail.Empty())

	// The failed download records nothing and stays eligible.
	fail := store.filings["S100FAIL"]
	assert.Nil(t, store.details[fail.ID])

	// A second pass only touches the failed filing.
	client.failDocs = nil
	client.archives["S100FAIL"] = utf16Table(t, "項目名\t値\n保有の目的\t純投資のため\n")
	stats, err = syncer.SyncHoldingDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 1, client.docDownloads["S100GOOD"], "extracted filings are not re-downloaded")
	require.NotNil(t, store.details[fail.ID])
}

func TestPurgeEmptyHoldingDetailsAllowsRetry(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	client := &fakeClient{
		listing:  listingJSON(t, listingDoc("S100JUNK", "E04948", "E00001")),
		archives: map[string][]byte{"S100JUNK": []byte("garbage")},
	}

	syncer := NewSyncer(Config{Days: 0}, client, nil, store)
	_, err := syncer.SyncDocuments(ctx)
	require.NoError(t, err)
	_, err = syncer.SyncHoldingDetails(ctx)
	require.NoError(t, err)

	filing := store.filings["S100JUNK"]
	require.NotNil(t, store.details[filing.ID])

	purged, err := syncer.PurgeEmptyHoldingDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// The fixed archive extracts on retry.
	client.archives["S100JUNK"] = utf16Table(t, "項目名\t値\n株券等保有割合（％）\t5.5\n")
	stats, err := syncer.SyncHoldingDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 5.5, *store.details[filing.ID].HoldingRatio)
}
