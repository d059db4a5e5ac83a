package zonecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/go-zones/pkg/zones"
)

// DefaultPersistQueueSize bounds how many writes may wait for the persist
// worker. When the queue is full further writes skip persistence and the
// memory tier remains authoritative.
const DefaultPersistQueueSize = 64

const (
	zonesFileSuffix = "_zones.cache"
	metaFileSuffix  = "_meta.cache"
)

// persistJob carries one city's collection from Put to the persist worker.
// gen pins the job to the cache state that produced it; the worker discards
// jobs whose generation has moved on, so an invalidation can never be undone
// by a persist that was already queued.
type persistJob struct {
	city    zones.CityID
	zones   []zones.ParkingZone
	savedAt time.Time
	gen     uint64
}

// FileCacheConfig configures the durable tier.
type FileCacheConfig struct {
	// Dir is the cache directory. The cache owns its contents; nothing else
	// should write there. It is created lazily on the first persist. Required.
	Dir string
	// QueueSize bounds the persist queue. DefaultPersistQueueSize when zero.
	QueueSize int
	// Clock overrides the time source used for savedAt stamps. Defaults to
	// time.Now in UTC.
	Clock func() time.Time
}

// FileCache is the durable tier. Reads are served from a wrapped MemoryCache
// first and fall through to version-checked files on disk; writes update
// memory synchronously and persist through a single background worker, so Put
// never waits on file I/O. Files that are unreadable, stamped with an old
// SchemaVersion, or inconsistent with their metadata are deleted by the read
// that discovers them.
type FileCache struct {
	dir    string
	memory *MemoryCache
	now    func() time.Time
	logger zerolog.Logger

	// diskMu serializes every file read, write, and delete. Invalidations run
	// entirely under it, so a disk load never interleaves with an
	// invalidation and cannot repopulate memory behind one.
	diskMu sync.Mutex

	mu          sync.Mutex
	lastUpdated time.Time
	generations map[zones.CityID]uint64
	closed      bool
	pendingJobs int
	idle        *sync.Cond

	jobs       chan persistJob
	quit       chan struct{}
	workerDone chan struct{}
	stopOnce   sync.Once
}

var _ ZoneCache = (*FileCache)(nil)

// NewFileCache creates the durable tier around an existing memory tier and
// starts its persist worker.
func NewFileCache(cfg FileCacheConfig, memory *MemoryCache, logger zerolog.Logger) (*FileCache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if memory == nil {
		return nil, errors.New("memory cache cannot be nil")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultPersistQueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	c := &FileCache{
		dir:         cfg.Dir,
		memory:      memory,
		now:         cfg.Clock,
		logger:      logger.With().Str("component", "FileCache").Str("dir", cfg.Dir).Logger(),
		generations: make(map[zones.CityID]uint64),
		jobs:        make(chan persistJob, cfg.QueueSize),
		quit:        make(chan struct{}),
		workerDone:  make(chan struct{}),
	}
	c.idle = sync.NewCond(&c.mu)
	go c.persistWorker()
	return c, nil
}

func (c *FileCache) zonesPath(city zones.CityID) string {
	return filepath.Join(c.dir, city.String()+zonesFileSuffix)
}

func (c *FileCache) metaPath(city zones.CityID) string {
	return filepath.Join(c.dir, city.String()+metaFileSuffix)
}

// Get returns city's collection from memory when fresh, otherwise from disk.
func (c *FileCache) Get(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, bool) {
	if zs, ok := c.memory.Get(ctx, city); ok {
		return zs, true
	}
	return c.LoadFromDisk(ctx, city)
}

// Put stores zs in memory and queues it for persistence. The call returns as
// soon as memory is updated; a Get issued immediately afterwards sees the new
// collection even though the files may not exist yet. The memory write and
// the generation bump share one critical section, so racing Puts for a city
// settle on the same winner in memory and on disk.
func (c *FileCache) Put(ctx context.Context, city zones.CityID, zs []zones.ParkingZone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.memory.Put(ctx, city, zs)
	now := c.now()
	c.lastUpdated = now
	if c.closed {
		c.logger.Warn().Str("city", city.String()).Msg("Cache is closed; keeping write in memory only.")
		return
	}

	c.generations[city]++
	job := persistJob{city: city, zones: zs, savedAt: now, gen: c.generations[city]}
	select {
	case c.jobs <- job:
		c.pendingJobs++
	default:
		// Roll the generation back so a persist already queued for this city
		// is not discarded in favor of nothing.
		c.generations[city]--
		c.logger.Error().Str("city", city.String()).Msg("Persist queue is full; dropping write, memory remains authoritative.")
	}
}

// Invalidate removes city's entry from memory and its file pair from disk.
// Persists still queued for the city are discarded, and a disk load in flight
// when the invalidation lands is discarded the same way, so neither can
// resurrect deleted data. Missing files are not an error.
func (c *FileCache) Invalidate(ctx context.Context, city zones.CityID) {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()

	c.mu.Lock()
	c.generations[city]++
	c.mu.Unlock()

	c.memory.Invalidate(ctx, city)
	c.removeEntryFiles(city)
}

// InvalidateAll clears memory, discards queued persists, resets LastUpdated,
// and replaces the cache directory with an empty one.
func (c *FileCache) InvalidateAll(ctx context.Context) {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()

	c.mu.Lock()
	for city := range c.generations {
		c.generations[city]++
	}
	c.lastUpdated = time.Time{}
	c.mu.Unlock()

	c.memory.InvalidateAll(ctx)

	if err := os.RemoveAll(c.dir); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear cache directory.")
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Error().Err(err).Msg("Failed to recreate cache directory.")
	}
}

// LastUpdated reports the savedAt stamp of the most recent Put or disk load,
// or the zero time when nothing has been written since creation or the last
// InvalidateAll.
func (c *FileCache) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// LoadFromDisk reads city's file pair, validates it, and on success populates
// the memory tier so subsequent reads hit memory. LastUpdated picks up the
// persisted savedAt stamp. Useful for warming the cache on startup as well as
// serving read misses. A missing pair is a plain miss; an unreadable,
// outdated, or inconsistent pair is deleted and reported as a miss; a load
// overtaken by a concurrent write is discarded and reported as a miss.
func (c *FileCache) LoadFromDisk(ctx context.Context, city zones.CityID) ([]zones.ParkingZone, bool) {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()

	// Snapshot the generation so a load overtaken by a write cannot clobber
	// the newer memory entry when it finishes.
	c.mu.Lock()
	gen := c.generations[city]
	c.mu.Unlock()

	metaRaw, err := os.ReadFile(c.metaPath(city))
	if err != nil {
		return nil, false
	}
	payloadRaw, err := os.ReadFile(c.zonesPath(city))
	if err != nil {
		return nil, false
	}

	meta, err := decodeMetadata(metaRaw)
	if err != nil {
		c.purgeEntry(city, "metadata is unreadable")
		return nil, false
	}
	if meta.Version != SchemaVersion {
		c.logger.Info().
			Str("city", city.String()).
			Str("found_version", meta.Version).
			Str("current_version", SchemaVersion).
			Msg("Cache format version changed; discarding persisted entry.")
		c.removeEntryFiles(city)
		return nil, false
	}

	zs, err := decodeZonePayload(payloadRaw)
	if err != nil {
		c.purgeEntry(city, "payload is unreadable")
		return nil, false
	}
	if len(zs) != meta.ZoneCount {
		c.purgeEntry(city, "payload disagrees with metadata zone count")
		return nil, false
	}

	c.mu.Lock()
	if c.generations[city] != gen {
		c.mu.Unlock()
		c.logger.Debug().Str("city", city.String()).Msg("Skipping superseded disk load.")
		return nil, false
	}
	c.memory.Put(ctx, city, zs)
	c.lastUpdated = meta.SavedAt
	c.mu.Unlock()

	c.logger.Debug().Str("city", city.String()).Int("zone_count", len(zs)).Msg("Loaded zones from disk.")
	return zs, true
}

// Flush blocks until every persist enqueued before the call has been written
// or discarded. It is the deterministic join point for tests and shutdown,
// and is safe to call while writes keep arriving.
func (c *FileCache) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.mu.Lock()
		for c.pendingJobs > 0 {
			c.idle.Wait()
		}
		c.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush interrupted: %w", ctx.Err())
	}
}

// Close stops accepting persists, drains the queue, and waits for the worker
// to exit. Later Puts still update memory. Safe to call more than once.
func (c *FileCache) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.quit) })

	select {
	case <-c.workerDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close interrupted: %w", ctx.Err())
	}
}

func (c *FileCache) persistWorker() {
	defer close(c.workerDone)
	for {
		select {
		case job := <-c.jobs:
			c.persist(job)
			c.jobDone()
		case <-c.quit:
			// Drain whatever was queued before Close, then exit.
			for {
				select {
				case job := <-c.jobs:
					c.persist(job)
					c.jobDone()
				default:
					return
				}
			}
		}
	}
}

// jobDone retires one persist job and wakes Flush waiters once the queue is
// empty.
func (c *FileCache) jobDone() {
	c.mu.Lock()
	c.pendingJobs--
	if c.pendingJobs == 0 {
		c.idle.Broadcast()
	}
	c.mu.Unlock()
}

// persist writes one job's file pair. Every failure is logged and swallowed;
// the memory tier keeps serving the collection for the life of the process.
func (c *FileCache) persist(job persistJob) {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()

	c.mu.Lock()
	current := c.generations[job.city]
	c.mu.Unlock()
	if current != job.gen {
		c.logger.Debug().Str("city", job.city.String()).Msg("Skipping superseded persist job.")
		return
	}

	payload, err := encodeZonePayload(job.zones)
	if err != nil {
		c.logger.Error().Err(err).Str("city", job.city.String()).Msg("Failed to encode zones for persistence.")
		return
	}
	meta, err := encodeMetadata(CacheMetadata{
		Version:   SchemaVersion,
		SavedAt:   job.savedAt,
		ZoneCount: len(job.zones),
	})
	if err != nil {
		c.logger.Error().Err(err).Str("city", job.city.String()).Msg("Failed to encode cache metadata.")
		return
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Error().Err(err).Msg("Failed to create cache directory.")
		return
	}
	if err := writeFileAtomic(c.zonesPath(job.city), payload); err != nil {
		c.logger.Error().Err(err).Str("city", job.city.String()).Msg("Failed to persist zone payload.")
		return
	}
	if err := writeFileAtomic(c.metaPath(job.city), meta); err != nil {
		c.logger.Error().Err(err).Str("city", job.city.String()).Msg("Failed to persist cache metadata.")
		return
	}
	c.logger.Debug().Str("city", job.city.String()).Int("zone_count", len(job.zones)).Msg("Persisted zones to disk.")
}

func (c *FileCache) purgeEntry(city zones.CityID, reason string) {
	c.logger.Warn().Str("city", city.String()).Str("reason", reason).Msg("Purging corrupt cache entry.")
	c.removeEntryFiles(city)
}

// removeEntryFiles deletes city's file pair. Callers hold diskMu.
func (c *FileCache) removeEntryFiles(city zones.CityID) {
	for _, path := range []string{c.zonesPath(city), c.metaPath(city)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Error().Err(err).Str("path", path).Msg("Failed to remove cache file.")
		}
	}
}

// writeFileAtomic replaces path through a temp file and rename so a reader
// never observes a partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".zonecache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", writeErr)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
