package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edinet-watch/holdings/internal/models"
	"github.com/edinet-watch/holdings/internal/sync"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same queries run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements the pipeline's entity-store operations plus the read
// queries behind the JSON API.
type Repository struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// NewRepository creates a repository on top of a connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithTx runs fn against a transactional repository. fn returning an error
// rolls the whole unit back.
func (r *Repository) WithTx(ctx context.Context, fn func(sync.Store) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txRepo := &Repository{pool: r.pool, db: tx, inTx: true}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FilerByEdinetCode resolves a filer through any of its codes. Returns
// (nil, nil) when the code is unknown.
func (r *Repository) FilerByEdinetCode(ctx context.Context, edinetCode string) (*models.Filer, error) {
	var f models.Filer
	err := r.db.QueryRow(ctx, `
		SELECT f.id, f.name, f.sec_code, f.jcn, f.created_at, f.updated_at
		FROM filers f
		JOIN filer_codes fc ON fc.filer_id = f.id
		WHERE fc.edinet_code = $1
	`, edinetCode).Scan(&f.ID, &f.Name, &f.SecCode, &f.JCN, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying filer by code: %w", err)
	}

	codes, err := r.filerCodes(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	f.Codes = codes
	return &f, nil
}

func (r *Repository) filerCodes(ctx context.Context, filerID int64) ([]models.FilerCode, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, filer_id, edinet_code, name, created_at
		FROM filer_codes
		WHERE filer_id = $1
		ORDER BY created_at, id
	`, filerID)
	if err != nil {
		return nil, fmt.Errorf("querying filer codes: %w", err)
	}
	defer rows.Close()

	var codes []models.FilerCode
	for rows.Next() {
		var c models.FilerCode
		if err := rows.Scan(&c.ID, &c.FilerID, &c.EdinetCode, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning filer code: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// CreateFilerWithCode inserts a filer and its first FilerCode atomically.
func (r *Repository) CreateFilerWithCode(ctx context.Context, filer *models.Filer, edinetCode string) error {
	return r.WithTx(ctx, func(s sync.Store) error {
		tr := s.(*Repository)

		err := tr.db.QueryRow(ctx, `
			INSERT INTO filers (name, sec_code, jcn)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, filer.Name, filer.SecCode, filer.JCN).Scan(&filer.ID, &filer.CreatedAt, &filer.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting filer: %w", err)
		}

		code := models.FilerCode{
			FilerID:    filer.ID,
			EdinetCode: edinetCode,
			Name:       &filer.Name,
		}
		err = tr.db.QueryRow(ctx, `
			INSERT INTO filer_codes (filer_id, edinet_code, name)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, code.FilerID, code.EdinetCode, code.Name).Scan(&code.ID, &code.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting filer code: %w", err)
		}

		filer.Codes = []models.FilerCode{code}
		return nil
	})
}

// IssuerByEdinetCode returns (nil, nil) when the code is unknown.
func (r *Repository) IssuerByEdinetCode(ctx context.Context, edinetCode string) (*models.Issuer, error) {
	var is models.Issuer
	err := r.db.QueryRow(ctx, `
		SELECT id, edinet_code, name, sec_code, created_at, updated_at
		FROM issuers
		WHERE edinet_code = $1
	`, edinetCode).Scan(&is.ID, &is.EdinetCode, &is.Name, &is.SecCode, &is.CreatedAt, &is.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying issuer by code: %w", err)
	}
	return &is, nil
}

// CreateIssuer inserts a new issuer; the name stays null until back-filled
// from the EDINET code list.
func (r *Repository) CreateIssuer(ctx context.Context, issuer *models.Issuer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO issuers (edinet_code, name, sec_code)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, issuer.EdinetCode, issuer.Name, issuer.SecCode).Scan(&issuer.ID, &issuer.CreatedAt, &issuer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting issuer: %w", err)
	}
	return nil
}

// ListIssuers returns every issuer, for the name back-fill pass.
func (r *Repository) ListIssuers(ctx context.Context) ([]models.Issuer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, edinet_code, name, sec_code, created_at, updated_at
		FROM issuers
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying issuers: %w", err)
	}
	defer rows.Close()

	var issuers []models.Issuer
	for rows.Next() {
		var is models.Issuer
		if err := rows.Scan(&is.ID, &is.EdinetCode, &is.Name, &is.SecCode, &is.CreatedAt, &is.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning issuer: %w", err)
		}
		issuers = append(issuers, is)
	}
	return issuers, rows.Err()
}

// UpdateIssuerName back-fills an issuer's display name and securities code.
func (r *Repository) UpdateIssuerName(ctx context.Context, id int64, name string, secCode *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE issuers
		SET name = $2,
		    sec_code = COALESCE($3, sec_code),
		    updated_at = NOW()
		WHERE id = $1
	`, id, name, secCode)
	if err != nil {
		return fmt.Errorf("updating issuer name: %w", err)
	}
	return nil
}

const filingColumns = `id, doc_id, filer_id, issuer_id, doc_type, doc_description,
	submit_date, parent_doc_id, csv_flag, xbrl_flag, pdf_flag, created_at`

func scanFiling(row pgx.Row, fl *models.Filing) error {
	return row.Scan(&fl.ID, &fl.DocID, &fl.FilerID, &fl.IssuerID, &fl.DocType, &fl.DocDescription,
		&fl.SubmitDate, &fl.ParentDocID, &fl.CSVFlag, &fl.XBRLFlag, &fl.PDFFlag, &fl.CreatedAt)
}

// FilingByDocID returns (nil, nil) when the document is unknown.
func (r *Repository) FilingByDocID(ctx context.Context, docID string) (*models.Filing, error) {
	var fl models.Filing
	err := scanFiling(r.db.QueryRow(ctx,
		`SELECT `+filingColumns+` FROM filings WHERE doc_id = $1`, docID), &fl)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying filing by doc id: %w", err)
	}
	return &fl, nil
}

// CreateFiling inserts a new filing.
func (r *Repository) CreateFiling(ctx context.Context, filing *models.Filing) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO filings (doc_id, filer_id, issuer_id, doc_type, doc_description,
			submit_date, parent_doc_id, csv_flag, xbrl_flag, pdf_flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, filing.DocID, filing.FilerID, filing.IssuerID, filing.DocType, filing.DocDescription,
		filing.SubmitDate, filing.ParentDocID, filing.CSVFlag, filing.XBRLFlag, filing.PDFFlag).
		Scan(&filing.ID, &filing.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting filing: %w", err)
	}
	return nil
}

// FilingsMissingHoldingDetail selects csv-flagged filings with no extracted
// detail yet, newest first.
func (r *Repository) FilingsMissingHoldingDetail(ctx context.Context, f sync.FilingFilter) ([]models.Filing, error) {
	query := `
		SELECT fl.id, fl.doc_id, fl.filer_id, fl.issuer_id, fl.doc_type, fl.doc_description,
		       fl.submit_date, fl.parent_doc_id, fl.csv_flag, fl.xbrl_flag, fl.pdf_flag, fl.created_at
		FROM filings fl
		LEFT JOIN holding_details hd ON hd.filing_id = fl.id
		WHERE fl.csv_flag AND hd.id IS NULL`
	var args []any

	if f.FilerEdinetCode != "" {
		args = append(args, f.FilerEdinetCode)
		query += fmt.Sprintf(`
		AND fl.filer_id = (SELECT filer_id FROM filer_codes WHERE edinet_code = $%d)`, len(args))
	}
	if f.Year != 0 {
		args = append(args, f.Year)
		query += fmt.Sprintf(`
		AND EXTRACT(YEAR FROM fl.submit_date) = $%d`, len(args))
	}
	query += `
		ORDER BY fl.submit_date DESC NULLS LAST, fl.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying filings missing detail: %w", err)
	}
	defer rows.Close()

	var filings []models.Filing
	for rows.Next() {
		var fl models.Filing
		if err := scanFiling(rows, &fl); err != nil {
			return nil, fmt.Errorf("scanning filing: %w", err)
		}
		filings = append(filings, fl)
	}
	return filings, rows.Err()
}

// CreateHoldingDetail inserts the extraction result for one filing. The
// unique constraint on filing_id keeps one detail per filing.
func (r *Repository) CreateHoldingDetail(ctx context.Context, d *models.HoldingDetail) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO holding_details (filing_id, shares_held, holding_ratio, purpose)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, d.FilingID, d.SharesHeld, d.HoldingRatio, d.Purpose).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting holding detail: %w", err)
	}
	return nil
}

// PurgeEmptyHoldingDetails deletes all-null details so their filings get
// re-extracted on the next holdings pass.
func (r *Repository) PurgeEmptyHoldingDetails(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM holding_details
		WHERE shares_held IS NULL AND holding_ratio IS NULL AND purpose IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("purging empty holding details: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FilerSummary is a filer with its filing statistics, for listing endpoints.
type FilerSummary struct {
	models.Filer
	FilingCount      int        `json:"filing_count"`
	IssuerCount      int        `json:"issuer_count"`
	LatestFilingDate *time.Time `json:"latest_filing_date"`
}

// ListFilers returns filers ordered by most recent filing, with counts.
func (r *Repository) ListFilers(ctx context.Context, search string, skip, limit int) ([]FilerSummary, int, error) {
	where := ``
	var args []any
	if search != "" {
		args = append(args, "%"+search+"%")
		where = `WHERE f.name ILIKE $1`
	}

	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM filers f `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting filers: %w", err)
	}

	args = append(args, limit, skip)
	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.name, f.sec_code, f.jcn, f.created_at, f.updated_at,
		       COUNT(fl.id) AS filing_count,
		       COUNT(DISTINCT fl.issuer_id) AS issuer_count,
		       MAX(fl.submit_date) AS latest_filing_date
		FROM filers f
		LEFT JOIN filings fl ON fl.filer_id = f.id
		`+where+`
		GROUP BY f.id
		ORDER BY latest_filing_date DESC NULLS LAST
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying filers: %w", err)
	}
	defer rows.Close()

	var filers []FilerSummary
	for rows.Next() {
		var fs FilerSummary
		if err := rows.Scan(&fs.ID, &fs.Name, &fs.SecCode, &fs.JCN, &fs.CreatedAt, &fs.UpdatedAt,
			&fs.FilingCount, &fs.IssuerCount, &fs.LatestFilingDate); err != nil {
			return nil, 0, fmt.Errorf("scanning filer summary: %w", err)
		}
		filers = append(filers, fs)
	}
	return filers, total, rows.Err()
}

// FilerByID loads one filer with its codes, or (nil, nil).
func (r *Repository) FilerByID(ctx context.Context, id int64) (*models.Filer, error) {
	var f models.Filer
	err := r.db.QueryRow(ctx, `
		SELECT id, name, sec_code, jcn, created_at, updated_at
		FROM filers WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.SecCode, &f.JCN, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying filer: %w", err)
	}

	codes, err := r.filerCodes(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	f.Codes = codes
	return &f, nil
}

// FilingView is a filing joined with its issuer name and extracted detail.
type FilingView struct {
	models.Filing
	FilerName    string   `json:"filer_name"`
	IssuerName   *string  `json:"issuer_name"`
	SharesHeld   *int64   `json:"shares_held"`
	HoldingRatio *float64 `json:"holding_ratio"`
	Purpose      *string  `json:"purpose"`
}

const filingViewQuery = `
	SELECT fl.id, fl.doc_id, fl.filer_id, fl.issuer_id, fl.doc_type, fl.doc_description,
	       fl.submit_date, fl.parent_doc_id, fl.csv_flag, fl.xbrl_flag, fl.pdf_flag, fl.created_at,
	       f.name, i.name,
	       hd.shares_held, hd.holding_ratio, hd.purpose
	FROM filings fl
	JOIN filers f ON f.id = fl.filer_id
	LEFT JOIN issuers i ON i.id = fl.issuer_id
	LEFT JOIN holding_details hd ON hd.filing_id = fl.id`

func scanFilingView(rows pgx.Rows) (FilingView, error) {
	var v FilingView
	err := rows.Scan(&v.ID, &v.DocID, &v.FilerID, &v.IssuerID, &v.DocType, &v.DocDescription,
		&v.SubmitDate, &v.ParentDocID, &v.CSVFlag, &v.XBRLFlag, &v.PDFFlag, &v.CreatedAt,
		&v.FilerName, &v.IssuerName,
		&v.SharesHeld, &v.HoldingRatio, &v.Purpose)
	return v, err
}

// FilingsByFiler pages through one filer's filings, newest first.
func (r *Repository) FilingsByFiler(ctx context.Context, filerID int64, skip, limit int) ([]FilingView, int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM filings WHERE filer_id = $1`, filerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting filings: %w", err)
	}

	rows, err := r.db.Query(ctx, filingViewQuery+`
		WHERE fl.filer_id = $1
		ORDER BY fl.submit_date DESC NULLS LAST, fl.id DESC
		LIMIT $2 OFFSET $3
	`, filerID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("querying filings: %w", err)
	}
	defer rows.Close()

	var views []FilingView
	for rows.Next() {
		v, err := scanFilingView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning filing view: %w", err)
		}
		views = append(views, v)
	}
	return views, total, rows.Err()
}

// RecentFilings returns the latest filings across all filers.
func (r *Repository) RecentFilings(ctx context.Context, limit int) ([]FilingView, error) {
	rows, err := r.db.Query(ctx, filingViewQuery+`
		ORDER BY fl.submit_date DESC NULLS LAST, fl.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent filings: %w", err)
	}
	defer rows.Close()

	var views []FilingView
	for rows.Next() {
		v, err := scanFilingView(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning filing view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// IssuerSummary is an issuer with its filing count.
type IssuerSummary struct {
	models.Issuer
	FilingCount int `json:"filing_count"`
}

// ListIssuersPage pages issuers ordered by filing count.
func (r *Repository) ListIssuersPage(ctx context.Context, search string, skip, limit int) ([]IssuerSummary, int, error) {
	where := ``
	var args []any
	if search != "" {
		args = append(args, "%"+search+"%")
		where = `WHERE i.name ILIKE $1`
	}

	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM issuers i `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting issuers: %w", err)
	}

	args = append(args, limit, skip)
	rows, err := r.db.Query(ctx, `
		SELECT i.id, i.edinet_code, i.name, i.sec_code, i.created_at, i.updated_at,
		       COUNT(fl.id) AS filing_count
		FROM issuers i
		LEFT JOIN filings fl ON fl.issuer_id = i.id
		`+where+`
		GROUP BY i.id
		ORDER BY filing_count DESC, i.id
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying issuers: %w", err)
	}
	defer rows.Close()

	var issuers []IssuerSummary
	for rows.Next() {
		var is IssuerSummary
		if err := rows.Scan(&is.ID, &is.EdinetCode, &is.Name, &is.SecCode, &is.CreatedAt, &is.UpdatedAt,
			&is.FilingCount); err != nil {
			return nil, 0, fmt.Errorf("scanning issuer summary: %w", err)
		}
		issuers = append(issuers, is)
	}
	return issuers, total, rows.Err()
}
