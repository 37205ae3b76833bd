// Package service provides the business logic of the background-music arbiter.
package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond"
	"github.com/samber/lo"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/ports"
)

// Sentinel names that mark a sheet row as not being a real song.
var notASongNames = []string{"Null BGM", "test"}

// DefaultLanguages is the language sheet load order.
var DefaultLanguages = []string{"en", "ja", "de", "fr", "zh"}

// CatalogOptions configures a SongCatalog.
type CatalogOptions struct {
	// Languages lists the language sheets to load, in order
	Languages []string

	// Workers bounds concurrent sheet fetches
	Workers int

	// Rand drives random picks; nil seeds a fresh generator
	Rand *rand.Rand
}

// ruleLookup is the part of the replacement table the catalog needs.
type ruleLookup interface {
	Contains(targetSongID int) bool
}

// catalogSnapshot is one immutable generation of the catalog.
type catalogSnapshot struct {
	songs map[int]domain.Song
	ids   []int // catalog order, as listed by the metadata sheet
}

func emptySnapshot() *catalogSnapshot {
	return &catalogSnapshot{songs: make(map[int]domain.Song)}
}

func (s *catalogSnapshot) clone() *catalogSnapshot {
	songs := make(map[int]domain.Song, len(s.songs))
	for id, song := range s.songs {
		songs[id] = song
	}
	return &catalogSnapshot{songs: songs, ids: append([]int(nil), s.ids...)}
}

// SongCatalog owns song metadata and answers lookups, searches and random picks.
// Readers always see a complete snapshot; loads build a new one and swap it in.
//
// The catalog is constructed empty and filled by Refresh, ReloadCached or Load.
// Until then every query reports the song as absent.
type SongCatalog struct {
	// Dependencies (injected)
	logger    *slog.Logger
	resources ports.ResourceIndex
	remote    ports.SheetSource
	cache     ports.SheetCache
	parser    ports.SheetParser
	bus       ports.EventBus

	languages []string
	workers   int

	snap atomic.Pointer[catalogSnapshot]

	// writeMu serializes snapshot writers
	writeMu sync.Mutex

	// refresh state
	mu            sync.Mutex
	refreshing    bool
	cancelRefresh context.CancelFunc

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSongCatalog creates an empty catalog. remote may be nil to load from cache only.
func NewSongCatalog(
	logger *slog.Logger,
	resources ports.ResourceIndex,
	remote ports.SheetSource,
	cache ports.SheetCache,
	parser ports.SheetParser,
	bus ports.EventBus,
	opts CatalogOptions,
) *SongCatalog {
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultLanguages
	}
	if opts.Workers <= 0 {
		opts.Workers = len(opts.Languages) + 1
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	c := &SongCatalog{
		logger:    logger.With(slog.String("service", "catalog")),
		resources: resources,
		remote:    remote,
		cache:     cache,
		parser:    parser,
		bus:       bus,
		languages: append([]string(nil), opts.Languages...),
		workers:   opts.Workers,
		rng:       opts.Rand,
	}
	c.snap.Store(emptySnapshot())
	return c
}

// Load ingests one sheet. A metadata pass replaces the catalog contents; a
// language pass attaches strings to existing entries and drops entries that
// are not real songs. Records whose id is not numeric are skipped.
func (c *SongCatalog) Load(kind domain.SheetKind, records []domain.SheetRecord) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var next *catalogSnapshot
	if kind.IsMetadata() {
		next = emptySnapshot()
	} else {
		next = c.snap.Load().clone()
	}
	c.apply(next, kind, records)
	c.snap.Store(next)
}

// apply mutates a snapshot that no reader can see yet.
func (c *SongCatalog) apply(s *catalogSnapshot, kind domain.SheetKind, records []domain.SheetRecord) {
	if kind.IsMetadata() {
		c.applyMetadata(s, records)
		return
	}
	c.applyLanguage(s, string(kind), records)
}

func (c *SongCatalog) applyMetadata(s *catalogSnapshot, records []domain.SheetRecord) {
	for _, rec := range records {
		id, ok := parseID(rec)
		if !ok {
			continue
		}
		res, ok := c.resources.Resource(id)
		if !ok {
			continue
		}

		var duration time.Duration
		if len(rec) > 1 {
			if secs, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64); err == nil && secs > 0 {
				duration = time.Duration(secs * float64(time.Second))
			} else {
				c.logger.Debug("unparsable duration", slog.Int("id", id), slog.String("value", rec[1]))
			}
		}

		if _, dup := s.songs[id]; !dup {
			s.ids = append(s.ids, id)
		}
		s.songs[id] = domain.Song{
			ID:             id,
			Strings:        make(map[string]domain.SongStrings),
			FilePath:       res.FilePath,
			FileExists:     c.resources.FileExists(res.FilePath),
			Duration:       duration,
			SpecialMode:    res.SpecialMode,
			DisableRestart: res.DisableRestart,
		}
	}
}

func (c *SongCatalog) applyLanguage(s *catalogSnapshot, lang string, records []domain.SheetRecord) {
	removed := make(map[int]bool)
	for _, rec := range records {
		id, ok := parseID(rec)
		if !ok {
			continue
		}
		song, ok := s.songs[id]
		if !ok {
			continue
		}

		name := column(rec, 1)
		if (lang == domain.PrimaryLanguage && name == "") || lo.Contains(notASongNames, name) {
			delete(s.songs, id)
			removed[id] = true
			continue
		}

		song = song.Clone()
		song.Strings[lang] = domain.SongStrings{
			Name:            name,
			AlternateName:   column(rec, 2),
			SpecialModeName: column(rec, 3),
			Locations:       column(rec, 4),
			AdditionalInfo:  column(rec, 5),
		}
		s.songs[id] = song
	}

	if len(removed) > 0 {
		s.ids = lo.Reject(s.ids, func(id int, _ int) bool { return removed[id] })
	}
}

func parseID(rec domain.SheetRecord) (int, bool) {
	if len(rec) == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func column(rec domain.SheetRecord, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// Refresh reloads every sheet, preferring the remote source and falling back
// to the cache when any remote sheet fails. After a remote success the cache is
// rewritten. Only one refresh runs at a time.
func (c *SongCatalog) Refresh(ctx context.Context) error {
	return c.refresh(ctx, c.remote != nil)
}

// ReloadCached rebuilds the catalog from the cached sheets only.
func (c *SongCatalog) ReloadCached(ctx context.Context) error {
	return c.refresh(ctx, false)
}

// CancelRefresh cancels an in-flight refresh. The current catalog stays in place.
func (c *SongCatalog) CancelRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelRefresh != nil {
		c.cancelRefresh()
	}
}

// IsRefreshing reports whether a refresh is running.
func (c *SongCatalog) IsRefreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

func (c *SongCatalog) refresh(parent context.Context, useRemote bool) error {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return domain.NewServiceError("SongCatalog", "Refresh", "refresh already in progress", domain.ErrRefreshInProgress)
	}
	c.refreshing = true

	ctx, cancel := context.WithCancel(parent)
	c.cancelRefresh = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.cancelRefresh = nil
		c.mu.Unlock()
		cancel()
	}()

	source := domain.CatalogSourceCache
	var sheets map[domain.SheetKind]string
	var err error

	if useRemote {
		c.logger.Info("checking for updated bgm sheets")
		sheets, err = c.fetchAll(ctx, c.remote, true)
		if err == nil {
			source = domain.CatalogSourceRemote
		} else if ctx.Err() != nil {
			return domain.ErrRefreshCancelled
		} else {
			c.logger.Warn("failed to update bgm sheets, using cached copy", slog.Any("error", err))
		}
	}

	if sheets == nil {
		sheets, err = c.fetchAll(ctx, c.cache, false)
		if err != nil {
			if ctx.Err() != nil {
				return domain.ErrRefreshCancelled
			}
			c.logger.Error("no usable bgm sheets", slog.Any("error", err))
			c.bus.Publish(domain.NewCatalogLoadFailedEvent(err))
			return domain.NewServiceError("SongCatalog", "Refresh", "no usable sheets", err)
		}
	}

	next, err := c.build(sheets)
	if err != nil {
		c.bus.Publish(domain.NewCatalogLoadFailedEvent(err))
		return domain.NewServiceError("SongCatalog", "Refresh", "failed to build catalog", err)
	}
	if ctx.Err() != nil {
		return domain.ErrRefreshCancelled
	}

	c.writeMu.Lock()
	c.snap.Store(next)
	c.writeMu.Unlock()

	if source == domain.CatalogSourceRemote {
		c.saveToCache(sheets)
	}

	c.logger.Info("catalog loaded", slog.String("source", string(source)), slog.Int("songs", len(next.ids)))
	c.bus.Publish(domain.NewCatalogLoadedEvent(source, len(next.ids)))
	return nil
}

func (c *SongCatalog) kinds() []domain.SheetKind {
	kinds := make([]domain.SheetKind, 0, len(c.languages)+1)
	kinds = append(kinds, domain.SheetMetadata)
	for _, lang := range c.languages {
		kinds = append(kinds, domain.SheetKind(lang))
	}
	return kinds
}

// fetchAll fetches every sheet kind concurrently. With strict set, any failure
// fails the whole fetch; otherwise only the metadata sheet is required.
func (c *SongCatalog) fetchAll(ctx context.Context, src ports.SheetSource, strict bool) (map[domain.SheetKind]string, error) {
	kinds := c.kinds()

	pool := pond.New(c.workers, len(kinds))
	defer pool.StopAndWait()

	group, gctx := pool.GroupContext(ctx)

	var mu sync.Mutex
	sheets := make(map[domain.SheetKind]string, len(kinds))

	for _, kind := range kinds {
		group.Submit(func() error {
			text, err := src.FetchSheet(gctx, kind)
			if err != nil {
				if strict || kind.IsMetadata() {
					return err
				}
				c.logger.Warn("skipping sheet", slog.String("kind", string(kind)), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			sheets[kind] = text
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}

// build parses the fetched sheets into a private snapshot, metadata first and
// then languages in configured order.
func (c *SongCatalog) build(sheets map[domain.SheetKind]string) (*catalogSnapshot, error) {
	next := emptySnapshot()
	for _, kind := range c.kinds() {
		text, ok := sheets[kind]
		if !ok {
			continue
		}
		records, err := c.parser.ParseSheet(text)
		if err != nil {
			if kind.IsMetadata() {
				return nil, domain.NewSheetError("parse", kind, err)
			}
			c.logger.Warn("skipping unparsable sheet", slog.String("kind", string(kind)), slog.Any("error", err))
			continue
		}
		c.apply(next, kind, records)
	}
	return next, nil
}

func (c *SongCatalog) saveToCache(sheets map[domain.SheetKind]string) {
	for kind, text := range sheets {
		if err := c.cache.SaveSheet(kind, text); err != nil {
			c.logger.Warn("failed to cache sheet", slog.String("kind", string(kind)), slog.Any("error", err))
		}
	}
}

// Get returns the song with the given id.
func (c *SongCatalog) Get(id int) (domain.Song, bool) {
	song, ok := c.snap.Load().songs[id]
	if !ok {
		return domain.Song{}, false
	}
	return song.Clone(), true
}

// Exists reports whether the id is in the catalog.
func (c *SongCatalog) Exists(id int) bool {
	_, ok := c.snap.Load().songs[id]
	return ok
}

// IsDisableRestart reports whether re-selecting the song must not restart it.
func (c *SongCatalog) IsDisableRestart(id int) bool {
	song, ok := c.snap.Load().songs[id]
	return ok && song.DisableRestart
}

// Len returns the number of songs.
func (c *SongCatalog) Len() int {
	return len(c.snap.Load().ids)
}

// IDs returns the song ids in catalog order.
func (c *SongCatalog) IDs() []int {
	return append([]int(nil), c.snap.Load().ids...)
}

// Songs returns all songs in catalog order.
func (c *SongCatalog) Songs() []domain.Song {
	s := c.snap.Load()
	return lo.Map(s.ids, func(id int, _ int) domain.Song {
		return s.songs[id].Clone()
	})
}

// FindByName returns the first song whose name or alternate name equals name,
// ignoring case. Songs are searched in catalog order, and for each song the
// languages in the given order.
func (c *SongCatalog) FindByName(name string, languages []string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}

	s := c.snap.Load()
	for _, id := range s.ids {
		song := s.songs[id]
		for _, lang := range languages {
			strs, ok := song.Strings[lang]
			if !ok {
				continue
			}
			if strings.EqualFold(strs.Name, name) || strings.EqualFold(strs.AlternateName, name) {
				return id, true
			}
		}
	}
	return 0, false
}

// PickRandom returns a uniformly random song id from constrainTo, or from the
// whole catalog when constrainTo is nil. Only ids present in the catalog with
// an existing resource file are eligible.
func (c *SongCatalog) PickRandom(constrainTo []int) (int, error) {
	s := c.snap.Load()

	source := constrainTo
	if source == nil {
		source = s.ids
	}
	eligible := lo.Filter(source, func(id int, _ int) bool {
		song, ok := s.songs[id]
		return ok && song.FileExists
	})
	if len(eligible) == 0 {
		return 0, domain.ErrNoEligibleSongs
	}

	c.rngMu.Lock()
	i := c.rng.IntN(len(eligible))
	c.rngMu.Unlock()

	return eligible[i], nil
}

// FirstIDWithoutReplacement returns the first song in catalog order that has no
// replacement rule yet.
func (c *SongCatalog) FirstIDWithoutReplacement(rules ruleLookup) (int, error) {
	for _, id := range c.snap.Load().ids {
		if !rules.Contains(id) {
			return id, nil
		}
	}
	return 0, domain.ErrCatalogEmpty
}
