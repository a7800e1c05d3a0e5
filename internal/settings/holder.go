// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/metrics"
	"github.com/ManuGH/dpmon/internal/telemetry"
	"github.com/ManuGH/dpmon/internal/validate"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SourceDefault marks a snapshot built from Default() instead of a file.
const SourceDefault = "default"

// DefaultDebounce is how long the watcher waits for a burst of file events to settle.
const DefaultDebounce = 500 * time.Millisecond

// PublishTimeout bounds one publish round. It runs detached from the caller's
// cancellation so a client hanging up on /reload cannot skip the write.
const PublishTimeout = 10 * time.Second

// Snapshot is one immutable, validated revision of the settings document.
type Snapshot struct {
	Document Document
	// Revision is Hash(Document).
	Revision string
	// Epoch increases by one on every swap.
	Epoch    uint64
	Source   string
	LoadedAt time.Time
}

func newSnapshot(doc Document, source string, epoch uint64) (*Snapshot, error) {
	rev, err := Hash(doc)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Document: doc.Clone(),
		Revision: rev,
		Epoch:    epoch,
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Publisher receives every snapshot the holder swaps in.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap *Snapshot) error
}

// publisherState remembers the last revision a publisher accepted, so one
// that failed is retried on the next reload even if the file is unchanged.
type publisherState struct {
	Publisher
	revision string
}

// Holder owns the active settings snapshot and swaps it atomically on reload.
// Readers always see a complete, validated document.
type Holder struct {
	mu      sync.RWMutex
	current *Snapshot
	path    string
	load    func(path string) (Document, error)
	logger  zerolog.Logger

	debounce time.Duration

	// pubMu serializes publish rounds; stateMu guards publishers and their
	// revisions and is never held across a Publish call.
	pubMu      sync.Mutex
	stateMu    sync.Mutex
	publishers []*publisherState

	listenMu  sync.RWMutex
	listeners []chan<- *Snapshot

	// reloadMu serializes Reload so epochs stay dense.
	reloadMu sync.Mutex

	watchMu   sync.Mutex
	watcher   *fsnotify.Watcher
	watchStop context.CancelFunc
	watchDone chan struct{}
}

// NewHolder validates initial and makes it epoch 1. path is the file Reload reads;
// empty means the document never changes after start.
func NewHolder(initial Document, path string) (*Holder, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("validate initial settings: %w", err)
	}
	source := path
	if source == "" {
		source = SourceDefault
	}
	snap, err := newSnapshot(initial, source, 1)
	if err != nil {
		return nil, err
	}
	metrics.RecordSettingsSwap(snap.Epoch, snap.LoadedAt)
	return &Holder{
		current:  snap,
		path:     path,
		load:     LoadFile,
		logger:   xglog.WithComponent("settings"),
		debounce: DefaultDebounce,
	}, nil
}

// OpenHolder loads path and returns a holder for it. An empty path serves Default().
func OpenHolder(path string) (*Holder, error) {
	if path == "" {
		return NewHolder(Default(), "")
	}
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewHolder(doc, path)
}

// SetDebounce changes the watcher debounce. Call before StartWatcher.
func (h *Holder) SetDebounce(d time.Duration) {
	if d > 0 {
		h.debounce = d
	}
}

// Path returns the watched settings file.
func (h *Holder) Path() string { return h.path }

// Current returns the active snapshot. Callers must not modify it.
func (h *Holder) Current() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// AddPublisher registers p. It receives the current snapshot on the next
// Publish or Reload and every swap after that.
func (h *Holder) AddPublisher(p Publisher) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	h.publishers = append(h.publishers, &publisherState{Publisher: p})
}

// Stale lists publishers whose last accepted revision is not the current one.
func (h *Holder) Stale() []string {
	rev := h.Current().Revision
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	var out []string
	for _, p := range h.publishers {
		if p.revision != rev {
			out = append(out, p.Name())
		}
	}
	return out
}

// RegisterListener registers a channel that receives each new snapshot.
// Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- *Snapshot) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Reload reads the settings file and swaps it in if it is valid and different.
// On any failure the active snapshot stays untouched.
func (h *Holder) Reload(ctx context.Context) error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	ctx, span := telemetry.Tracer("dpmon/settings").Start(ctx, "settings.reload")
	defer span.End()

	if h.path == "" {
		metrics.IncSettingsReload("unchanged")
		h.logger.Debug().Str(xglog.FieldEvent, "settings.reload_skipped").Msg("no settings file configured")
		_ = h.publish(ctx, h.Current(), false)
		return nil
	}

	h.logger.Info().
		Str(xglog.FieldEvent, "settings.reload_start").
		Str(xglog.FieldPath, h.path).
		Msg("reloading settings")

	doc, err := h.load(h.path)
	if err != nil {
		var verr validate.ValidationError
		outcome := "load_error"
		if errors.As(err, &verr) {
			outcome = "invalid"
			metrics.AddSettingsValidationErrors(len(verr.Errors()))
		}
		metrics.IncSettingsReload(outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "settings.reload_failed").
			Str(xglog.FieldPath, h.path).
			Msg("keeping previous settings")
		return fmt.Errorf("reload settings: %w", err)
	}

	old := h.Current()
	next, err := newSnapshot(doc, h.path, old.Epoch+1)
	if err != nil {
		metrics.IncSettingsReload("load_error")
		span.RecordError(err)
		return fmt.Errorf("reload settings: %w", err)
	}
	if next.Revision == old.Revision {
		metrics.IncSettingsReload("unchanged")
		span.SetAttributes(telemetry.SettingsAttributes(h.path, old.Revision, old.Epoch)...)
		h.logger.Debug().
			Str(xglog.FieldEvent, "settings.reload_unchanged").
			Str(xglog.FieldRevision, old.Revision).
			Msg("settings unchanged")
		_ = h.publish(ctx, old, false)
		return nil
	}

	h.mu.Lock()
	h.current = next
	h.mu.Unlock()

	metrics.RecordSettingsSwap(next.Epoch, next.LoadedAt)
	changed := Diff(old.Document, next.Document)
	span.SetAttributes(telemetry.SettingsAttributes(h.path, next.Revision, next.Epoch)...)
	span.SetAttributes(attribute.StringSlice(telemetry.SettingsChangedKey, changed))

	h.logger.Info().
		Str(xglog.FieldEvent, "settings.reload_success").
		Str(xglog.FieldRevision, next.Revision).
		Uint64(xglog.FieldEpoch, next.Epoch).
		Strs("changed", changed).
		Msg("settings swapped")

	h.notifyListeners(next)
	_ = h.publish(ctx, next, false)
	return nil
}

// Publish pushes the active snapshot to every publisher, including those that
// already have it. The daemon calls it once at start.
func (h *Holder) Publish(ctx context.Context) error {
	return h.publish(ctx, h.Current(), true)
}

// RetryStale republishes the active snapshot to publishers that missed it.
// It is a no-op when nothing is stale.
func (h *Holder) RetryStale(ctx context.Context) error {
	if len(h.Stale()) == 0 {
		return nil
	}
	return h.publish(ctx, h.Current(), false)
}

// publish sends snap to every publisher that does not have it yet, or to all
// of them when force is set. A failed publisher keeps its old revision and
// is retried on the next round.
func (h *Holder) publish(ctx context.Context, snap *Snapshot, force bool) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()

	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	// a concurrent Reload may have swapped while we waited
	if cur := h.Current(); cur.Epoch > snap.Epoch {
		snap = cur
	}

	h.stateMu.Lock()
	pubs := append([]*publisherState(nil), h.publishers...)
	h.stateMu.Unlock()

	var errs []error
	for _, p := range pubs {
		if !force && h.publishedRevision(p) == snap.Revision {
			continue
		}
		err := p.Publish(ctx, snap)
		metrics.IncSettingsPublish(p.Name(), err)
		if err == nil {
			h.stateMu.Lock()
			p.revision = snap.Revision
			h.stateMu.Unlock()
			continue
		}
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "settings.publish_failed").
			Str("publisher", p.Name()).
			Str(xglog.FieldRevision, snap.Revision).
			Msg("publisher failed, retrying on next reload")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return errors.Join(errs...)
}

func (h *Holder) publishedRevision(p *publisherState) string {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return p.revision
}

func (h *Holder) notifyListeners(snap *Snapshot) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()

	for _, ch := range h.listeners {
		select {
		case ch <- snap:
		default:
			h.logger.Warn().
				Str(xglog.FieldEvent, "settings.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// StartWatcher reloads the settings whenever the file changes. It watches the
// parent directory so editors that replace the file by rename are seen too.
// The watcher stops when ctx ends or Stop is called.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().
			Str(xglog.FieldEvent, "settings.watcher_disabled").
			Msg("settings watcher disabled (no settings file)")
		return nil
	}

	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		return errors.New("settings watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	h.watcher = watcher
	h.watchStop = cancel
	h.watchDone = make(chan struct{})

	h.logger.Info().
		Str(xglog.FieldEvent, "settings.watcher_started").
		Str(xglog.FieldPath, h.path).
		Msg("watching settings file for changes")

	go h.watchLoop(ctx, watcher, h.watchDone)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(h.path)
	debounce := time.NewTimer(h.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "settings.watcher_stopped").Msg("settings watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(xglog.FieldEvent, "settings.file_changed").
				Str("op", event.Op.String()).
				Msg("settings file changed")
			debounce.Reset(h.debounce)

		case <-debounce.C:
			if err := h.Reload(ctx); err != nil {
				h.logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "settings.auto_reload_failed").
					Msg("automatic settings reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "settings.watcher_error").
				Msg("settings watcher error")
		}
	}
}

// Stop ends the watcher and waits for it to exit.
func (h *Holder) Stop() {
	h.watchMu.Lock()
	stop, done := h.watchStop, h.watchDone
	h.watcher, h.watchStop, h.watchDone = nil, nil, nil
	h.watchMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}
