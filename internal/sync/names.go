package sync

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// codeInfo is one row of the EDINET code list: display name and optional
// securities code for an EDINET code.
type codeInfo struct {
	name    string
	secCode *string
}

// SyncIssuerNames back-fills issuer display names from the EDINET code list
// CSV (EdinetcodeDlInfo.csv, CP932, with a one-line preamble before the
// header). Issuers whose stored name already matches are untouched; the pass
// is idempotent. Returns the number of issuers updated.
func (s *Syncer) SyncIssuerNames(ctx context.Context, csvPath string) (int, error) {
	infos, err := loadCodeList(csvPath)
	if err != nil {
		return 0, err
	}
	log.Printf("loaded %d EDINET codes from %s", len(infos), csvPath)

	issuers, err := s.store.ListIssuers(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing issuers: %w", err)
	}

	updated := 0
	err = s.store.WithTx(ctx, func(txStore Store) error {
		for _, issuer := range issuers {
			info, ok := infos[issuer.EdinetCode]
			if !ok || info.name == "" {
				continue
			}
			if issuer.Name != nil && *issuer.Name == info.name {
				continue
			}
			if err := txStore.UpdateIssuerName(ctx, issuer.ID, info.name, info.secCode); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return updated, fmt.Errorf("updating issuer names: %w", err)
	}

	return updated, nil
}

// loadCodeList parses the code list into a code -> info map. The file is
// CP932; the first line is a download preamble, the second the real header.
func loadCodeList(path string) (map[string]codeInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading code list: %w", err)
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decoding code list: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	// Preamble line.
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("reading code list preamble: %w", err)
	}
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading code list header: %w", err)
	}

	codeIdx, nameIdx, secIdx := -1, -1, -1
	for i, col := range header {
		col = strings.TrimSpace(col)
		switch {
		case codeIdx < 0 && (strings.Contains(col, "ＥＤＩＮＥＴコード") || strings.Contains(col, "EDINET")):
			codeIdx = i
		case nameIdx < 0 && (strings.Contains(col, "提出者名") || strings.Contains(col, "名称")):
			nameIdx = i
		case secIdx < 0 && strings.Contains(col, "証券コード"):
			secIdx = i
		}
	}
	if codeIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("code list header missing code or name column")
	}

	infos := make(map[string]codeInfo)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if codeIdx >= len(record) || nameIdx >= len(record) {
			continue
		}

		code := strings.TrimSpace(record[codeIdx])
		if code == "" {
			continue
		}
		info := codeInfo{name: strings.TrimSpace(record[nameIdx])}
		if secIdx >= 0 && secIdx < len(record) {
			if sec := strings.TrimSpace(record[secIdx]); sec != "" {
				info.secCode = &sec
			}
		}
		infos[code] = info
	}

	return infos, nil
}
