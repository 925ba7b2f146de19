package edinet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key")
	c.baseURL = srv.URL
	// No pacing in tests.
	c.listPacer = newPacer(0)
	c.docPacer = newPacer(0)
	return c
}

func TestListDocuments(t *testing.T) {
	var gotQuery map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents.json", r.URL.Path)
		gotQuery = map[string]string{
			"date":             r.URL.Query().Get("date"),
			"type":             r.URL.Query().Get("type"),
			"Subscription-Key": r.URL.Query().Get("Subscription-Key"),
		}
		w.Write([]byte(`{
			"metadata": {"status": "200", "resultset": {"count": 1}},
			"results": [{
				"docID": "S100XBWO",
				"edinetCode": "E04948",
				"filerName": "株式会社光通信",
				"issuerEdinetCode": "E00001",
				"ordinanceCode": "060",
				"formCode": "010",
				"submitDateTime": "2025-01-15 09:30",
				"csvFlag": "1",
				"xbrlFlag": "1",
				"pdfFlag": null,
				"secCode": null,
				"parentDocID": null
			}]
		}`))
	})

	resp, err := c.ListDocuments(context.Background(), time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2025-01-15", gotQuery["date"])
	assert.Equal(t, "2", gotQuery["type"])
	assert.Equal(t, "test-key", gotQuery["Subscription-Key"])

	require.Len(t, resp.Results, 1)
	doc := resp.Results[0]
	assert.Equal(t, "S100XBWO", doc.DocID)
	assert.True(t, doc.HasCSV())
	assert.False(t, doc.HasPDF())
	assert.Nil(t, doc.SecCodePtr())
	assert.Nil(t, doc.ParentDocIDPtr())

	require.NotNil(t, doc.SubmitDate())
	assert.True(t, doc.SubmitDate().Equal(time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)))
}

func TestListDocumentsNoResults(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata": {"status": "404", "message": "Not Found"}}`))
	})

	resp, err := c.ListDocuments(context.Background(), time.Now())
	require.NoError(t, err, "a day without data is not an error")
	assert.Nil(t, resp.Results)
}

func TestListDocumentsServerError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.ListDocuments(context.Background(), time.Now())
	require.Error(t, err)
}

func TestDownloadCSV(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents/S100XBWO", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("type"))
		w.Write([]byte("PK\x03\x04zipbytes"))
	})

	raw, err := c.DownloadCSV(context.Background(), "S100XBWO")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04zipbytes"), raw)
}

func TestSubmitDateUnparsable(t *testing.T) {
	doc := Document{SubmitDateTime: "January 15"}
	assert.Nil(t, doc.SubmitDate())
}

func TestPacerEnforcesInterval(t *testing.T) {
	p := newPacer(30 * time.Millisecond)
	p.Wait()
	start := time.Now()
	p.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
