// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package tagger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/ai/openai"
	"github.com/poiesic/tagger/backup"
	"github.com/poiesic/tagger/config"
	"github.com/poiesic/tagger/storage"
	"github.com/poiesic/tagger/storage/badger"
	"github.com/poiesic/tagger/storage/file"
	"github.com/poiesic/tagger/storage/sqlite"
	"github.com/poiesic/tagger/tagging"
	"github.com/spf13/afero"
)

// Storage drivers accepted in the storage config.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver indicates an unsupported storage driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Database wires the configured stores and model services together.
type Database struct {
	config      *config.Config
	backend     *badger.Backend
	sqlStore    *sqlite.Store
	catalog     storage.CatalogRepository
	tags        storage.TagRepository
	templates   storage.TemplateRepository
	checkpoints storage.CheckpointRepository
	fs          afero.Fs

	providerOnce sync.Once
	provider     ai.AIProvider
	providerErr  error

	logger *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	fs       afero.Fs
}

// WithProvider uses the given model services instead of building them from config.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithFs sets the filesystem used for logs and the template file.
func WithFs(fs afero.Fs) DatabaseOption {
	return func(o *databaseOptions) {
		o.fs = fs
	}
}

// Open opens the stores named by cfg.
// Model services are created on first use.
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &databaseOptions{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(options)
	}

	db := &Database{
		config:   cfg,
		fs:       options.fs,
		provider: options.provider,
		logger:   slog.Default().With("component", "database"),
	}

	switch cfg.Storage.Driver {
	case DriverBadger, "":
		backend, err := badger.OpenBackend(cfg.Storage.Path, false)
		if err != nil {
			return nil, err
		}
		catalog, err := badger.NewCatalogRepository(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		tags, err := badger.NewTagRepository(backend)
		if err != nil {
			catalog.Close()
			backend.Close()
			return nil, err
		}
		db.backend = backend
		db.catalog = catalog
		db.tags = tags
		db.templates = badger.NewTemplateRepository(backend)
		db.checkpoints = badger.NewCheckpointRepository(backend)
	case DriverSQLite:
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		db.sqlStore = store
		db.catalog = store
		db.tags = store
		db.templates = store
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Storage.Driver)
	}

	if cfg.Storage.TemplateFile != "" {
		db.templates = file.NewTemplateStore(db.fs, cfg.Storage.TemplateFile)
	}

	return db, nil
}

// Close releases the model services and the stores.
func (db *Database) Close() error {
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}

	if db.sqlStore != nil {
		if err := db.sqlStore.Close(); err != nil {
			db.logger.Error("error closing sqlite store", "err", err)
			return err
		}
		return nil
	}

	if err := db.tags.Close(); err != nil {
		db.logger.Error("error closing tag repository", "err", err)
		return err
	}
	if err := db.catalog.Close(); err != nil {
		db.logger.Error("error closing catalog repository", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) CatalogRepository() storage.CatalogRepository {
	return db.catalog
}

func (db *Database) TagRepository() storage.TagRepository {
	return db.tags
}

func (db *Database) TemplateRepository() storage.TemplateRepository {
	return db.templates
}

// CheckpointRepository returns nil when the driver keeps no checkpoints.
func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpoints
}

// Provider returns the model services, creating them on first call.
func (db *Database) Provider() (ai.AIProvider, error) {
	db.providerOnce.Do(func() {
		if db.provider != nil {
			return
		}
		db.provider, db.providerErr = openai.NewProvider(db.config.AIConfig())
	})
	return db.provider, db.providerErr
}

// NewRunner builds a batch runner from the loaded config.
// Progress is printed to console when it is not nil.
func (db *Database) NewRunner(console io.Writer) (*tagging.Runner, error) {
	runConfig, err := db.config.TaggingConfig()
	if err != nil {
		return nil, err
	}
	provider, err := db.Provider()
	if err != nil {
		return nil, err
	}

	opts := []tagging.RunnerOption{
		tagging.WithTemplateStore(db.templates),
	}
	if runConfig.Mode == tagging.ModeTuning {
		opts = append(opts, tagging.WithJudge(provider.Judge()))
	}
	if db.checkpoints != nil {
		opts = append(opts, tagging.WithCheckpoints(db.checkpoints))
	}
	if path := db.config.Storage.ProgressLog; path != "" {
		opts = append(opts, tagging.WithProgressLog(tagging.NewProgressLog(db.fs, path)))
	}
	if path := db.config.Storage.OptimizationLog; path != "" {
		opts = append(opts, tagging.WithOptimizationLog(tagging.NewOptimizationLog(db.fs, path)))
	}
	if console != nil {
		opts = append(opts, tagging.WithConsole(console))
	}

	return tagging.NewRunner(db.catalog, db.tags, provider.Generator(), runConfig, opts...)
}

// NewExporter builds a backup exporter over the catalog and tags.
func (db *Database) NewExporter(opts ...backup.Option) (*backup.Exporter, error) {
	opts = append([]backup.Option{backup.WithFs(db.fs)}, opts...)
	return backup.NewExporter(db.catalog, db.tags, opts...)
}
