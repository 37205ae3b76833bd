// Package ports define the catalog metadata source.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
)

// SheetSource fetches the raw text of a catalog sheet.
type SheetSource interface {
	// FetchSheet returns the sheet text for the given kind.
	// Implementations must honor ctx cancellation and deadlines.
	FetchSheet(ctx context.Context, kind domain.SheetKind) (string, error)
}

// SheetCache is a SheetSource that can also persist sheets for later fallback.
type SheetCache interface {
	SheetSource

	// SaveSheet stores the sheet text, replacing any previous copy.
	SaveSheet(kind domain.SheetKind, text string) error
}

// SheetParser splits sheet text into records, without the header row.
type SheetParser interface {
	ParseSheet(text string) ([]domain.SheetRecord, error)
}
