package batchfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/careseek/importer/internal/models"
)

// ErrMissingHeader marks a file whose header row does not resolve the
// required name and address columns. It is reported once, before any
// row is parsed.
var ErrMissingHeader = errors.New("header row missing required name/address columns")

// headerSynonyms maps recognized header spellings (lowercased) to
// canonical field names. Batch extracts from different agencies label
// the same columns differently.
var headerSynonyms = map[string]string{
	"name":    models.FieldName,
	"기관명":     models.FieldName,
	"시설명":     models.FieldName,
	"yadmnm":  models.FieldName,
	"address": models.FieldAddress,
	"addr":    models.FieldAddress,
	"주소":      models.FieldAddress,
	"소재지":     models.FieldAddress,
	"phone":   models.FieldPhone,
	"tel":     models.FieldPhone,
	"telno":   models.FieldPhone,
	"전화번호":    models.FieldPhone,
	"department": models.FieldDepartment,
	"진료과":        models.FieldDepartment,
	"kind":       models.FieldKind,
	"종별":         models.FieldKind,
}

// ParseResult carries the parsed records plus the number of rows that
// were skipped for missing required fields or short column counts.
type ParseResult struct {
	Records []models.RawRecord
	Skipped int
}

// Parse reads decoded delimited text into raw records. The first
// non-empty line is the header; quoting follows CSV rules (doubled
// quotes escape, separators inside quotes are literal). Parsing the
// same text twice yields identical results.
func Parse(text string) (*ParseResult, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // rows may be ragged; short rows are skipped below
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true // fallback-decoded text can carry stray quotes

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isEmptyRow(row) {
			continue
		}

		if len(row) < len(header) {
			result.Skipped++
			continue
		}

		rec := models.RawRecord{}
		for i, field := range header {
			if field == "" {
				continue
			}
			rec[field] = strings.TrimSpace(row[i])
		}
		if rec.Get(models.FieldName) == "" || rec.Get(models.FieldAddress) == "" {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	log.Debug().Int("records", len(result.Records)).Int("skipped", result.Skipped).
		Msg("parsed batch file")
	return result, nil
}

// readHeader consumes lines until the first non-empty one and maps its
// columns to canonical fields. Both name and address must resolve.
func readHeader(reader *csv.Reader) ([]string, error) {
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil, ErrMissingHeader
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if isEmptyRow(row) {
			continue
		}

		header := make([]string, len(row))
		hasName, hasAddress := false, false
		for i, col := range row {
			canonical := headerSynonyms[strings.ToLower(strings.TrimSpace(col))]
			header[i] = canonical
			hasName = hasName || canonical == models.FieldName
			hasAddress = hasAddress || canonical == models.FieldAddress
		}
		if !hasName || !hasAddress {
			return nil, ErrMissingHeader
		}
		return header, nil
	}
}

func isEmptyRow(row []string) bool {
	for _, col := range row {
		if strings.TrimSpace(col) != "" {
			return false
		}
	}
	return true
}
