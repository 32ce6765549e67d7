package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/config"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	registrymigrate "github.com/chirino/chat-history/internal/registry/migrate"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

func init() {
	for _, kind := range []string{KindSQLite, KindPostgres} {
		registryblob.Register(registryblob.Plugin{
			Name:   kind,
			Loader: loader(kind),
		})
	}
	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqlMigrator{}})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

// blobRecord is one stored document. Source separates the bundled and local
// stores when both point at the same database.
type blobRecord struct {
	Source    string    `gorm:"column:source;primaryKey;size:32"`
	Key       string    `gorm:"column:blob_key;primaryKey;size:512"`
	Dir       string    `gorm:"column:dir;not null;index:idx_chat_blobs_dir;size:512"`
	Name      string    `gorm:"column:name;not null;size:255"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (blobRecord) TableName() string { return "chat_blobs" }

// Open connects to the database for the given kind.
func Open(kind, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch kind {
	case KindSQLite:
		dialector = sqlite.Open(dsn)
	case KindPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported kind %q", kind)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect %s: %w", kind, err)
	}
	return db, nil
}

// Migrate creates or updates the blob table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&blobRecord{}); err != nil {
		return fmt.Errorf("sqlstore: auto-migrate chat_blobs: %w", err)
	}
	return nil
}

func loader(kind string) registryblob.Loader {
	return func(ctx context.Context) (registryblob.BlobStore, error) {
		cfg := config.FromContext(ctx)
		if cfg == nil {
			return nil, fmt.Errorf("sqlstore: missing config in context")
		}
		role := config.RoleFromContext(ctx)
		src := cfg.Source(role)
		if strings.TrimSpace(src.DBURL) == "" {
			return nil, fmt.Errorf("sqlstore: %s db url is required", role)
		}
		db, err := Open(kind, src.DBURL)
		if err != nil {
			return nil, err
		}
		return New(db, role), nil
	}
}

type sqlMigrator struct{}

func (m *sqlMigrator) Name() string { return "sql-blob-schema" }

func (m *sqlMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.MigrateAtStart {
		return nil
	}
	done := map[string]bool{}
	for _, src := range []config.SourceConfig{cfg.Bundled, cfg.Local} {
		if src.Kind != KindSQLite && src.Kind != KindPostgres {
			continue
		}
		if done[src.Kind+"|"+src.DBURL] {
			continue
		}
		done[src.Kind+"|"+src.DBURL] = true
		log.Info("Running migration", "name", m.Name(), "kind", src.Kind)
		db, err := Open(src.Kind, src.DBURL)
		if err != nil {
			return err
		}
		err = Migrate(db.WithContext(ctx))
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SQLStore stores blobs as rows of the chat_blobs table.
type SQLStore struct {
	db     *gorm.DB
	source string
}

// New returns a store over db whose rows are tagged with source.
func New(db *gorm.DB, source string) *SQLStore {
	return &SQLStore{db: db, source: source}
}

func (s *SQLStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&blobRecord{}).
		Where("source = ? AND blob_key = ?", s.source, normalize(key)).
		Count(&count).Error
	if err != nil {
		return false, wrapErr("exists", key, err)
	}
	return count > 0, nil
}

func (s *SQLStore) Read(ctx context.Context, key string) ([]byte, error) {
	var rec blobRecord
	err := s.db.WithContext(ctx).
		Where("source = ? AND blob_key = ?", s.source, normalize(key)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &registryblob.NotFoundError{Key: key}
	}
	if err != nil {
		return nil, wrapErr("read", key, err)
	}
	return rec.Data, nil
}

func (s *SQLStore) Write(ctx context.Context, key string, data []byte) error {
	rec := s.record(key, data)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	return wrapErr("write", key, err)
}

func (s *SQLStore) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&blobRecord{}).
		Where("source = ? AND dir = ?", s.source, strings.Trim(dir, "/")).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, wrapErr("list", dir, err)
	}
	return names, nil
}

func (s *SQLStore) CreateIfAbsent(ctx context.Context, key string) error {
	rec := s.record(key, []byte{})
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
	return wrapErr("create", key, err)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) record(key string, data []byte) blobRecord {
	key = normalize(key)
	dir, name := registryblob.Split(key)
	return blobRecord{Source: s.source, Key: key, Dir: dir, Name: name, Data: data}
}

func normalize(key string) string {
	return strings.Trim(key, "/")
}

func wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("sqlstore: %s %s: table chat_blobs is missing, run the migrate command: %w", op, key, err)
	}
	return fmt.Errorf("sqlstore: %s %s: %w", op, key, err)
}

var _ registryblob.BlobStore = (*SQLStore)(nil)
