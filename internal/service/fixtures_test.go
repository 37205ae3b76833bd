package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/environment/mock"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/orchestra/internal/adapter/sheet"
	"github.com/tejashwikalptaru/orchestra/internal/domain"
	"github.com/tejashwikalptaru/orchestra/internal/logger"
)

// songSpec describes one catalog entry for a test fixture.
type songSpec struct {
	id             int
	name           string
	missingFile    bool
	disableRestart bool
	seconds        string
}

// metadataSheet renders a metadata sheet in the published export format.
func metadataSheet(specs ...songSpec) string {
	var b strings.Builder
	b.WriteString(`"id","duration"` + "\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "\"%d\",\"%s\"\n", s.id, s.seconds)
	}
	return b.String()
}

// languageSheet renders a language sheet; alt names are "<name> (alt)".
func languageSheet(specs ...songSpec) string {
	var b strings.Builder
	b.WriteString(`"id","name","alt","special","locations","info"` + "\n")
	for _, s := range specs {
		alt := ""
		if s.name != "" {
			alt = s.name + " (alt)"
		}
		fmt.Fprintf(&b, "\"%d\",\"%s\",\"%s\",\"\",\"Somewhere\",\"\"\n", s.id, s.name, alt)
	}
	return b.String()
}

// fakeSheets is an in-memory sheet source and cache.
type fakeSheets struct {
	mu      sync.Mutex
	sheets  map[domain.SheetKind]string
	errs    map[domain.SheetKind]error
	saved   map[domain.SheetKind]string
	block   bool
	started chan struct{}
	once    sync.Once
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		sheets:  make(map[domain.SheetKind]string),
		errs:    make(map[domain.SheetKind]error),
		saved:   make(map[domain.SheetKind]string),
		started: make(chan struct{}),
	}
}

func (f *fakeSheets) set(kind domain.SheetKind, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheets[kind] = text
}

func (f *fakeSheets) fail(kind domain.SheetKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[kind] = err
}

func (f *fakeSheets) FetchSheet(ctx context.Context, kind domain.SheetKind) (string, error) {
	f.once.Do(func() { close(f.started) })

	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[kind]; err != nil {
		return "", err
	}
	text, ok := f.sheets[kind]
	if !ok {
		return "", domain.NewSheetError("read", kind, domain.ErrSheetNotCached)
	}
	return text, nil
}

func (f *fakeSheets) SaveSheet(kind domain.SheetKind, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[kind] = text
	return nil
}

func (f *fakeSheets) savedKinds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// testLanguages keeps fixtures small: one primary and one secondary language.
var testLanguages = []string{"en", "ja"}

// registerResources adds a BGM table entry for every song.
func registerResources(env *mock.Environment, specs ...songSpec) {
	for _, s := range specs {
		path := fmt.Sprintf("music/bgm_%d.scd", s.id)
		env.AddResource(domain.BGMResource{ID: s.id, FilePath: path, DisableRestart: s.disableRestart})
		env.SetFileMissing(path, s.missingFile)
	}
}

// fixture bundles every service over in-memory adapters.
type fixture struct {
	env        *mock.Environment
	bus        *eventbus.SyncEventBus
	catalog    *SongCatalog
	rules      *ReplacementTable
	sequencer  *PlaylistSequencer
	arbiter    *PlaybackArbiter
	controller *Controller
	playlists  *memory.PlaylistRepository
	prefs      *PreferenceService
	changes    *changeRecorder
}

func newFixture(t *testing.T, specs ...songSpec) *fixture {
	t.Helper()

	log := logger.NewTestLogger()
	prefs := test.NewApp().Preferences()
	bus := eventbus.NewSyncEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	env := mock.NewEnvironment()
	registerResources(env, specs...)

	src := newFakeSheets()
	catalog := NewSongCatalog(log, env, nil, src, sheet.NewCSVParser(log), bus, CatalogOptions{
		Languages: testLanguages,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
	loadSpecs(t, catalog, specs...)

	playlists := memory.NewPlaylistRepository(prefs, log)
	settingsSvc := NewPreferenceService(log, memory.NewSettingsRepository(prefs), bus, testLanguages)
	rules := NewReplacementTable(log, memory.NewReplacementRepository(prefs), bus)
	sequencer := NewPlaylistSequencer(log, bus, rand.New(rand.NewPCG(3, 4)))
	arbiter := NewPlaybackArbiter(log, env, catalog, rules, playlists, bus)
	controller := NewController(log, catalog, rules, sequencer, arbiter, playlists, settingsSvc, testLanguages)

	return &fixture{
		env:        env,
		bus:        bus,
		catalog:    catalog,
		rules:      rules,
		sequencer:  sequencer,
		arbiter:    arbiter,
		controller: controller,
		playlists:  playlists,
		prefs:      settingsSvc,
		changes:    recordChanges(bus),
	}
}

// loadSpecs feeds metadata and English sheets built from specs through Load.
func loadSpecs(t *testing.T, catalog *SongCatalog, specs ...songSpec) {
	t.Helper()
	parser := sheet.NewCSVParser(nil)

	meta, err := parser.ParseSheet(metadataSheet(specs...))
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	catalog.Load(domain.SheetMetadata, meta)

	en, err := parser.ParseSheet(languageSheet(specs...))
	if err != nil {
		t.Fatalf("parse en: %v", err)
	}
	catalog.Load("en", en)
}

// songs returns n playable specs with ids first, first+1, ...
func songs(first, n int) []songSpec {
	specs := make([]songSpec, 0, n)
	for i := 0; i < n; i++ {
		id := first + i
		specs = append(specs, songSpec{id: id, name: fmt.Sprintf("Song %d", id), seconds: "120"})
	}
	return specs
}

// changeRecorder collects song changed events.
type changeRecorder struct {
	mu     sync.Mutex
	events []domain.SongChangedEvent
}

func recordChanges(bus *eventbus.SyncEventBus) *changeRecorder {
	r := &changeRecorder{}
	bus.Subscribe(domain.EventSongChanged, func(e domain.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e.(domain.SongChangedEvent))
	})
	return r
}

func (r *changeRecorder) all() []domain.SongChangedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SongChangedEvent(nil), r.events...)
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *changeRecorder) last() domain.SongChangedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return domain.SongChangedEvent{}
	}
	return r.events[len(r.events)-1]
}

func (r *changeRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
