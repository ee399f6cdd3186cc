package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/storage"
	"github.com/poiesic/tagger/storage/file"
	"github.com/spf13/afero"
)

// ManifestSuffix is appended to a backup path to name its manifest.
const ManifestSuffix = ".manifest.json"

// Snapshot maps record IDs to their tag names.
// Every catalog record appears, untagged ones with an empty list.
type Snapshot map[string][]string

// Manifest describes a written backup.
type Manifest struct {
	CreatedAt time.Time `json:"created_at"`
	Records   int       `json:"records"`
	Tagged    int       `json:"tagged"`
	// Digest is the sha256 of the RFC 8785 canonical form of the backup.
	Digest string `json:"sha256"`
}

// Exporter reads record tags concurrently and writes backups.
// Exporters only read from the repositories.
type Exporter struct {
	catalog storage.CatalogRepository
	tags    storage.TagRepository
	pool    *ants.Pool
	fs      afero.Fs
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter) error

// WithPoolSize sets the number of concurrent tag reads.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Exporter) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithFs sets the filesystem backups are written to.
// Default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(e *Exporter) error {
		e.fs = fs
		return nil
	}
}

// NewExporter creates an exporter over the given repositories.
// Call Release when done.
func NewExporter(catalog storage.CatalogRepository, tags storage.TagRepository, opts ...Option) (*Exporter, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if tags == nil {
		return nil, ErrTagStoreRequired
	}

	size := runtime.NumCPU()
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	e := &Exporter{
		catalog: catalog,
		tags:    tags,
		pool:    pool,
		fs:      afero.NewOsFs(),
		now:     time.Now,
		logger:  slog.Default().With("component", "backup"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}
	return e, nil
}

// Release stops the worker pool and waits for its workers to exit.
func (e *Exporter) Release() {
	if e.pool != nil {
		if err := e.pool.ReleaseTimeout(5 * time.Second); err != nil {
			e.logger.Warn("worker pool did not stop in time", "error", err)
		}
	}
}

// Collect reads the tags of every catalog record.
// The first read error cancels the remaining reads and is returned.
func (e *Exporter) Collect(ctx context.Context) (Snapshot, error) {
	records, err := e.catalog.ListRecords(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	snapshot := make(Snapshot, len(records))

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		id := rec.ID
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			names, err := e.tags.GetRecordTags(ctx, id)
			if err != nil {
				fail(fmt.Errorf("failed to read tags for %s: %w", id, err))
				return
			}
			if names == nil {
				names = []string{}
			}
			mu.Lock()
			snapshot[id] = names
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Debug("collected record tags", "records", len(snapshot))
	return snapshot, nil
}

// Export collects a snapshot and writes it to path with a manifest beside it.
func (e *Exporter) Export(ctx context.Context, path string) (*Manifest, error) {
	snapshot, err := e.Collect(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snapshot, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	digest, err := Digest(data)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		CreatedAt: e.now().UTC(),
		Records:   len(snapshot),
		Tagged:    snapshot.Tagged(),
		Digest:    digest,
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := file.WriteFileAtomic(e.fs, path, data); err != nil {
		return nil, err
	}
	if err := file.WriteFileAtomic(e.fs, path+ManifestSuffix, manifestData); err != nil {
		return nil, err
	}

	e.logger.Info("backup written", "path", path, "records", manifest.Records, "tagged", manifest.Tagged)
	return manifest, nil
}

// WriteCatalog writes every catalog record as an "id, name" line.
// The output can be loaded back with the import command.
func (e *Exporter) WriteCatalog(ctx context.Context, w io.Writer) (int, error) {
	records, err := e.catalog.ListRecords(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalog: %w", err)
	}
	for i, rec := range records {
		if _, err := fmt.Fprintf(w, "%s, %s\n", rec.ID, rec.Name); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// Tagged returns how many records carry at least one tag.
func (s Snapshot) Tagged() int {
	n := 0
	for _, names := range s {
		if len(names) > 0 {
			n++
		}
	}
	return n
}

// Digest canonicalizes JSON (RFC 8785) and returns its sha256 hex digest.
// Formatting and key order do not change the result.
func Digest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize backup: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Load reads a backup and checks it against its manifest when one exists.
func Load(fsys afero.Fs, path string) (Snapshot, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	manifestData, err := afero.ReadFile(fsys, path+ManifestSuffix)
	switch {
	case err == nil:
		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		digest, err := Digest(data)
		if err != nil {
			return nil, err
		}
		if digest != manifest.Digest {
			return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, path)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	return snapshot, nil
}

// Restore links every tag in the snapshot to its record.
// Records missing from the catalog are skipped and counted.
func Restore(ctx context.Context, tags storage.TagRepository, snapshot Snapshot) (restored, missing int, err error) {
	for id, names := range snapshot {
		if len(names) == 0 {
			continue
		}
		err := tags.AddRecordTags(ctx, id, core.LabelSet(names))
		switch {
		case err == nil:
			restored++
		case errors.Is(err, storage.ErrRecordNotFound):
			missing++
		default:
			return restored, missing, fmt.Errorf("failed to restore tags for %s: %w", id, err)
		}
	}
	return restored, missing, nil
}
