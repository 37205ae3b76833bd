package sheet

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// ParseRecords splits sheet text into records, dropping the header row.
// The export quotes every column and doubles embedded quotes; rows that cannot
// be parsed are skipped and counted.
func ParseRecords(text string) (records []domain.SheetRecord, skipped int, err error) {
	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, skipped, err
		}
		if header {
			header = false
			continue
		}
		records = append(records, domain.SheetRecord(row))
	}
	return records, skipped, nil
}

// CSVParser adapts ParseRecords to ports.SheetParser, logging skipped rows.
type CSVParser struct {
	logger *slog.Logger
}

// NewCSVParser creates a parser.
func NewCSVParser(logger *slog.Logger) *CSVParser {
	return &CSVParser{logger: logger}
}

// ParseSheet parses sheet text into records.
func (p *CSVParser) ParseSheet(text string) ([]domain.SheetRecord, error) {
	records, skipped, err := ParseRecords(text)
	if skipped > 0 && p.logger != nil {
		p.logger.Warn("skipped malformed sheet rows", slog.Int("count", skipped))
	}
	return records, err
}

var _ ports.SheetParser = (*CSVParser)(nil)
