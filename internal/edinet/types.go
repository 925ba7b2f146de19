package edinet

import (
	"time"
)

// ListResponse is the raw response of the EDINET v2 document-listing call
// (documents.json). Results is nil when EDINET has no data for the date;
// callers treat that as an empty day, not an error.
type ListResponse struct {
	Metadata struct {
		Title   string `json:"title"`
		Status  string `json:"status"`
		Message string `json:"message"`
		ResultSet struct {
			Count int `json:"count"`
		} `json:"resultset"`
	} `json:"metadata"`
	Results []Document `json:"results"`
}

// Document is one row of a daily listing. EDINET sends JSON null for absent
// fields; those decode to "" here and accessors below map them to pointers.
type Document struct {
	SeqNumber        int    `json:"seqNumber"`
	DocID            string `json:"docID"`
	EdinetCode       string `json:"edinetCode"`
	SecCode          string `json:"secCode"`
	JCN              string `json:"JCN"`
	FilerName        string `json:"filerName"`
	IssuerEdinetCode string `json:"issuerEdinetCode"`
	OrdinanceCode    string `json:"ordinanceCode"`
	FormCode         string `json:"formCode"`
	DocTypeCode      string `json:"docTypeCode"`
	PeriodStart      string `json:"periodStart"`
	PeriodEnd        string `json:"periodEnd"`
	SubmitDateTime   string `json:"submitDateTime"`
	DocDescription   string `json:"docDescription"`
	ParentDocID      string `json:"parentDocID"`
	XBRLFlag         string `json:"xbrlFlag"`
	PDFFlag          string `json:"pdfFlag"`
	CSVFlag          string `json:"csvFlag"`
	WithdrawalStatus string `json:"withdrawalStatus"`
}

const submitDateLayout = "2006-01-02 15:04"

// SubmitDate parses the listing's submission timestamp. EDINET formats it as
// "2006-01-02 15:04"; anything else (including absence) yields nil rather
// than a sentinel date.
func (d *Document) SubmitDate() *time.Time {
	if d.SubmitDateTime == "" {
		return nil
	}
	t, err := time.Parse(submitDateLayout, d.SubmitDateTime)
	if err != nil {
		return nil
	}
	return &t
}

// HasCSV reports whether EDINET offers a CSV rendition of this document.
func (d *Document) HasCSV() bool { return d.CSVFlag == "1" }

// HasXBRL reports whether EDINET offers the XBRL archive.
func (d *Document) HasXBRL() bool { return d.XBRLFlag == "1" }

// HasPDF reports whether EDINET offers the PDF rendition.
func (d *Document) HasPDF() bool { return d.PDFFlag == "1" }

// optStr maps EDINET's empty-string absence to a nullable column value.
func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SecCodePtr returns the securities code or nil.
func (d *Document) SecCodePtr() *string { return optStr(d.SecCode) }

// JCNPtr returns the corporate number or nil.
func (d *Document) JCNPtr() *string { return optStr(d.JCN) }

// ParentDocIDPtr returns the amendment chain parent or nil.
func (d *Document) ParentDocIDPtr() *string { return optStr(d.ParentDocID) }

// FormCodePtr returns the form code or nil.
func (d *Document) FormCodePtr() *string { return optStr(d.FormCode) }

// DocDescriptionPtr returns the human-readable description or nil.
func (d *Document) DocDescriptionPtr() *string { return optStr(d.DocDescription) }
