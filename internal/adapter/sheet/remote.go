// Package sheet provides the catalog's metadata sources: the published remote
// spreadsheet, an on-disk cache of the last good copy, record parsing and a
// cache watcher.
package sheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// DefaultURLTemplate is the published BGM spreadsheet in CSV export form.
// "{kind}" is replaced by the sheet kind.
const DefaultURLTemplate = "https://docs.google.com/spreadsheets/d/1s-xJjxqp6pwS7oewNy1aOQnr3gaJbewvIBbyYchZ6No/gviz/tq?tqx=out:csv&sheet={kind}"

// maxSheetBytes bounds a single sheet download.
const maxSheetBytes = 16 << 20

// RemoteSource fetches sheets over HTTP.
type RemoteSource struct {
	client      *http.Client
	urlTemplate string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewRemoteSource creates a remote sheet source. A zero timeout means the
// caller's context alone bounds each request.
func NewRemoteSource(urlTemplate string, timeout time.Duration, logger *slog.Logger) *RemoteSource {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &RemoteSource{
		client:      &http.Client{},
		urlTemplate: urlTemplate,
		timeout:     timeout,
		logger:      logger.With(slog.String("source", "remote")),
	}
}

// URL returns the request URL for a sheet kind.
func (s *RemoteSource) URL(kind domain.SheetKind) string {
	return strings.ReplaceAll(s.urlTemplate, "{kind}", string(kind))
}

// FetchSheet downloads one sheet.
func (s *RemoteSource) FetchSheet(ctx context.Context, kind domain.SheetKind) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(kind), nil)
	if err != nil {
		return "", domain.NewSheetError("fetch", kind, err)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", domain.NewSheetError("fetch", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewSheetError("fetch", kind, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetBytes))
	if err != nil {
		return "", domain.NewSheetError("fetch", kind, err)
	}

	s.logger.Debug("sheet fetched",
		slog.String("kind", string(kind)),
		slog.Int("bytes", len(body)),
		slog.Duration("took", time.Since(start)))
	return string(body), nil
}

var _ ports.SheetSource = (*RemoteSource)(nil)
