package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"topolens/internal/engine"
	"topolens/internal/events"
	"topolens/internal/metrics"
	"topolens/internal/models"
	"topolens/internal/storage"
)

var (
	ErrDuplicateSnapshot = errors.New("snapshot already exists")
	ErrNotFound          = errors.New("snapshot not found")
	ErrSnapshotNotReady  = errors.New("snapshot not ready")
	ErrInvalidName       = errors.New("invalid snapshot name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// Registry owns all snapshot records and their state machine:
// CREATING -> COMPLETE | FAILED, COMPLETE -> DELETED. Mutation is scoped to
// a per-key critical section so unrelated keys never contend.
type Registry struct {
	store     storage.Store
	gateway   engine.Gateway
	publisher *events.Publisher
	log       *zap.Logger

	mu sync.RWMutex
	// in-memory cache of snapshots to avoid hot DB on reads; persisted in store.
	cache map[string]*models.Snapshot
	// single-flight mutex per snapshot key
	keyMu sync.Map
}

// New creates a registry over the given store and gateway. publisher may be
// nil to disable event publishing.
func New(store storage.Store, gateway engine.Gateway, publisher *events.Publisher, log *zap.Logger) *Registry {
	r := &Registry{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
		cache:     make(map[string]*models.Snapshot),
	}
	r.recoverInterrupted()
	return r
}

// recoverInterrupted fails CREATING records left behind by a previous
// process. Their resolution goroutine died with it and will never run, so
// without this sweep the key could never be resolved or deleted.
func (r *Registry) recoverInterrupted() {
	ctx := context.Background()
	snaps, err := r.store.ListSnapshots(ctx, "")
	if err != nil {
		r.log.Error("scan for interrupted snapshots failed", zap.Error(err))
		return
	}
	for _, snap := range snaps {
		if snap.Status != models.SnapshotCreating {
			continue
		}
		snap.Status = models.SnapshotFailed
		snap.ErrorMessage = "resolution interrupted by restart"
		if err := r.save(ctx, snap); err != nil {
			r.log.Error("recover interrupted snapshot failed",
				zap.String("key", snap.Key()), zap.Error(err))
			continue
		}
		r.log.Warn("failed snapshot left in CREATING by an earlier run",
			zap.String("key", snap.Key()))
	}
}

// Create registers a new snapshot and submits its configuration files to
// the engine. It returns the CREATING record immediately; parse-status
// resolution happens in the background under the same key lock, so a
// concurrent Create for the same key blocks until resolution and then
// observes ErrDuplicateSnapshot alongside the resolved record. Creates for
// different keys proceed fully in parallel.
func (r *Registry) Create(ctx context.Context, network, name string, files []models.ConfigFile) (*models.Snapshot, error) {
	if network == "" {
		return nil, fmt.Errorf("%w: network required", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: at least one configuration file required", ErrInvalidName)
	}

	key := models.SnapshotKey(network, name)
	mtx := r.lockKey(key)

	existing, err := r.getCached(ctx, network, name)
	if err == nil && existing.Status != models.SnapshotDeleted {
		mtx.Unlock()
		return existing, ErrDuplicateSnapshot
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		mtx.Unlock()
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}

	snap := &models.Snapshot{
		Network:         network,
		Name:            name,
		Status:          models.SnapshotCreating,
		ConfigFileCount: len(files),
		ParseErrors:     []models.ParseError{},
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.save(ctx, snap); err != nil {
		mtx.Unlock()
		return nil, fmt.Errorf("save %s: %w", key, err)
	}

	if err := r.publisher.SnapshotEvent(ctx, "created", snap); err != nil {
		r.log.Warn("publish snapshot event failed", zap.String("key", key), zap.Error(err))
	}

	// The key lock is handed to the resolution goroutine: it is released
	// only once the snapshot reaches a terminal state, which is what makes
	// the whole create a single unit of work per key.
	go func() {
		defer mtx.Unlock()
		r.resolve(network, name, files)
	}()

	out := *snap
	return &out, nil
}

// resolve drives the snapshot from CREATING to COMPLETE or FAILED.
func (r *Registry) resolve(network, name string, files []models.ConfigFile) {
	ctx := context.Background()
	log := r.log.With(zap.String("network", network), zap.String("snapshot", name))

	snap, err := r.getCached(ctx, network, name)
	if err != nil {
		log.Error("resolution lost its record", zap.Error(err))
		return
	}

	statusRows, err := r.gateway.SubmitConfigs(ctx, network, name, files)
	if err != nil {
		r.fail(ctx, snap, fmt.Sprintf("submit configs: %v", err))
		return
	}

	var parseErrors []models.ParseError
	for _, row := range statusRows {
		if row.Passed() {
			continue
		}
		msg := row.Message
		if msg == "" {
			msg = "parse failed"
		}
		parseErrors = append(parseErrors, models.ParseError{
			FileName:   row.FileName,
			Message:    msg,
			LineNumber: row.LineNumber,
		})
	}

	deviceCount, err := r.deviceCount(ctx, network, name)
	if err != nil {
		log.Warn("device count unavailable", zap.Error(err))
	}

	snap.ParseErrors = parseErrors
	if parseErrors == nil {
		snap.ParseErrors = []models.ParseError{}
	}
	snap.DeviceCount = deviceCount

	// Partial failure is acceptable as long as something parsed; zero
	// detected devices means nothing usable came out of the upload.
	if deviceCount == 0 {
		snap.Status = models.SnapshotFailed
		if err != nil {
			snap.ErrorMessage = fmt.Sprintf("device count: %v", err)
		} else {
			snap.ErrorMessage = "no devices detected in uploaded configurations"
		}
	} else {
		snap.Status = models.SnapshotComplete
	}

	if err := r.save(ctx, snap); err != nil {
		log.Error("persist resolved snapshot failed", zap.Error(err))
		return
	}

	event := "completed"
	outcome := "complete"
	if snap.Status == models.SnapshotFailed {
		event = "failed"
		outcome = "failed"
	}
	metrics.SnapshotCreations.WithLabelValues(outcome).Inc()
	if err := r.publisher.SnapshotEvent(ctx, event, snap); err != nil {
		log.Warn("publish snapshot event failed", zap.Error(err))
	}
	log.Info("snapshot resolved",
		zap.String("status", string(snap.Status)),
		zap.Int("deviceCount", snap.DeviceCount),
		zap.Int("parseErrors", len(snap.ParseErrors)))
}

// deviceCount asks the engine how many devices the snapshot yielded,
// retrying transient connectivity failures.
func (r *Registry) deviceCount(ctx context.Context, network, name string) (int, error) {
	var count int
	op := func() error {
		rows, err := r.gateway.NodeProperties(ctx, network, name)
		if err != nil {
			if errors.Is(err, engine.ErrEngineUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		count = len(rows)
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Registry) fail(ctx context.Context, snap *models.Snapshot, msg string) {
	snap.Status = models.SnapshotFailed
	snap.ErrorMessage = msg
	if err := r.save(ctx, snap); err != nil {
		r.log.Error("persist failed snapshot", zap.String("key", snap.Key()), zap.Error(err))
		return
	}
	metrics.SnapshotCreations.WithLabelValues("failed").Inc()
	if err := r.publisher.SnapshotEvent(ctx, "failed", snap); err != nil {
		r.log.Warn("publish snapshot event failed", zap.String("key", snap.Key()), zap.Error(err))
	}
	r.log.Warn("snapshot failed", zap.String("key", snap.Key()), zap.String("reason", msg))
}

// Get returns a snapshot record. DELETED records behave as absent.
func (r *Registry) Get(ctx context.Context, network, name string) (*models.Snapshot, error) {
	snap, err := r.getCached(ctx, network, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if snap.Status == models.SnapshotDeleted {
		return nil, ErrNotFound
	}
	return snap, nil
}

// RequireComplete returns the snapshot if and only if it is COMPLETE.
func (r *Registry) RequireComplete(ctx context.Context, network, name string) (*models.Snapshot, error) {
	snap, err := r.Get(ctx, network, name)
	if err != nil {
		return nil, err
	}
	if snap.Status != models.SnapshotComplete {
		return nil, fmt.Errorf("%w: %s is %s", ErrSnapshotNotReady, snap.Key(), snap.Status)
	}
	return snap, nil
}

// List returns all non-DELETED snapshots, optionally filtered by network,
// newest first.
func (r *Registry) List(ctx context.Context, network string) ([]*models.Snapshot, error) {
	snaps, err := r.store.ListSnapshots(ctx, network)
	if err != nil {
		return nil, err
	}
	out := snaps[:0]
	for _, snap := range snaps {
		if snap.Status == models.SnapshotDeleted {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete logically deletes a snapshot. Engine-side deletion is delegated
// best-effort after local state flips: a remote failure is logged, not
// rolled back, since local visibility must not resurrect stale data.
func (r *Registry) Delete(ctx context.Context, network, name string) error {
	key := models.SnapshotKey(network, name)
	mtx := r.lockKey(key)
	defer mtx.Unlock()

	snap, err := r.getCached(ctx, network, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	switch snap.Status {
	case models.SnapshotDeleted:
		return ErrNotFound
	case models.SnapshotCreating:
		return fmt.Errorf("%w: %s still resolving", ErrSnapshotNotReady, key)
	}

	snap.Status = models.SnapshotDeleted
	if err := r.save(ctx, snap); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	if err := r.gateway.DeleteSnapshot(ctx, network, name); err != nil {
		r.log.Warn("engine-side snapshot deletion failed",
			zap.String("key", key), zap.Error(err))
	}
	if err := r.publisher.SnapshotEvent(ctx, "deleted", snap); err != nil {
		r.log.Warn("publish snapshot event failed", zap.String("key", key), zap.Error(err))
	}
	r.log.Info("snapshot deleted", zap.String("key", key))
	return nil
}

// CompactDeleted physically removes records already marked DELETED and
// reports how many were compacted. DELETED is a visibility tombstone, not
// data worth keeping; without compaction tombstones accumulate in the
// store forever.
func (r *Registry) CompactDeleted(ctx context.Context) (int, error) {
	snaps, err := r.store.ListSnapshots(ctx, "")
	if err != nil {
		return 0, err
	}
	compacted := 0
	for _, snap := range snaps {
		if snap.Status != models.SnapshotDeleted {
			continue
		}
		key := snap.Key()
		mtx := r.lockKey(key)
		if err := r.store.DeleteSnapshot(ctx, snap.Network, snap.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			mtx.Unlock()
			return compacted, fmt.Errorf("compact %s: %w", key, err)
		}
		r.mu.Lock()
		delete(r.cache, key)
		r.mu.Unlock()
		mtx.Unlock()
		compacted++
	}
	if compacted > 0 {
		r.log.Info("compacted deleted snapshots", zap.Int("count", compacted))
	}
	return compacted, nil
}

func (r *Registry) save(ctx context.Context, snap *models.Snapshot) error {
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	cp := *snap
	r.mu.Lock()
	r.cache[snap.Key()] = &cp
	r.mu.Unlock()
	return nil
}

// getCached returns a snapshot (from cache or store).
func (r *Registry) getCached(ctx context.Context, network, name string) (*models.Snapshot, error) {
	key := models.SnapshotKey(network, name)
	r.mu.RLock()
	if snap, ok := r.cache[key]; ok {
		cp := *snap
		r.mu.RUnlock()
		return &cp, nil
	}
	r.mu.RUnlock()

	snap, err := r.store.GetSnapshot(ctx, network, name)
	if err != nil {
		return nil, err
	}

	cp := *snap
	r.mu.Lock()
	r.cache[key] = &cp
	r.mu.Unlock()

	return snap, nil
}

// lockKey ensures only one mutating op per snapshot key at a time.
func (r *Registry) lockKey(key string) *sync.Mutex {
	v, _ := r.keyMu.LoadOrStore(key, &sync.Mutex{})
	mtx := v.(*sync.Mutex)
	mtx.Lock()
	return mtx
}
