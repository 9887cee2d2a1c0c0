package rendering

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// AssetStore is the content-addressed audio store: bytes on disk under
// their hash, metadata in radio.assets.
type AssetStore struct {
	db  bun.IDB
	dir string
	log *slog.Logger
}

// NewAssetStore creates a new asset store
func NewAssetStore(db bun.IDB, cfg *config.Config, log *slog.Logger) *AssetStore {
	return &AssetStore{
		db:  db,
		dir: cfg.Assets.Dir,
		log: log.With(logger.Scope("rendering.assets")),
	}
}

// Put stores audio bytes and returns the asset row. Storing the same bytes
// twice returns the existing row; the disk write is skipped on a hash hit.
func (s *AssetStore) Put(ctx context.Context, audio []byte, kind, mimeType string, durationSec float64) (*Asset, error) {
	if len(audio) == 0 {
		return nil, apperror.ErrValidation.WithMessage("refusing to store an empty asset")
	}

	sum := sha256.Sum256(audio)
	hash := hex.EncodeToString(sum[:])

	if existing, err := s.GetByHash(ctx, hash); err == nil {
		return existing, nil
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	path, err := s.write(hash, audio)
	if err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:          uuid.New(),
		ContentHash: hash,
		Kind:        kind,
		MimeType:    mimeType,
		SizeBytes:   int64(len(audio)),
		DurationSec: &durationSec,
		StoragePath: path,
	}
	_, err = s.db.NewInsert().
		Model(asset).
		On("CONFLICT (content_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	// A concurrent render of identical audio may have won the insert;
	// either way the row under this hash is the asset.
	return s.GetByHash(ctx, hash)
}

// GetByHash loads an asset by its content hash.
func (s *AssetStore) GetByHash(ctx context.Context, hash string) (*Asset, error) {
	asset := &Asset{}
	err := s.db.NewSelect().Model(asset).Where("a.content_hash = ?", hash).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("asset", hash)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return asset, nil
}

// Get loads an asset by id.
func (s *AssetStore) Get(ctx context.Context, id uuid.UUID) (*Asset, error) {
	asset := &Asset{}
	err := s.db.NewSelect().Model(asset).Where("a.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("asset", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return asset, nil
}

// write lands the bytes at dir/ab/cdef.... sharded by hash prefix. The
// write goes through a temp file and rename so readers never see a
// partial asset.
func (s *AssetStore) write(hash string, audio []byte) (string, error) {
	shard := filepath.Join(s.dir, hash[:2])
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return "", apperror.ErrInternal.WithMessage("asset directory not writable").WithInternal(err)
	}

	path := filepath.Join(shard, hash[2:])
	tmp, err := os.CreateTemp(shard, ".tmp-*")
	if err != nil {
		return "", apperror.ErrInternal.WithInternal(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", apperror.ErrInternal.WithInternal(err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperror.ErrInternal.WithInternal(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", apperror.ErrInternal.WithInternal(err)
	}
	return path, nil
}
