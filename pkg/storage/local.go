package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/beam-cloud/mytar/pkg/common"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type LocalArchiveStorage struct {
	archivePath string
}

type LocalArchiveStorageOpts struct {
	ArchivePath string
}

func NewLocalArchiveStorage(opts LocalArchiveStorageOpts) *LocalArchiveStorage {
	return &LocalArchiveStorage{
		archivePath: opts.ArchivePath,
	}
}

// Store writes the archive to a temporary file next to the archive path and
// renames it into place once write succeeds. A failed write leaves any
// existing archive untouched. Concurrent stores to the same path are refused.
func (s *LocalArchiveStorage) Store(ctx context.Context, write WriteFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lockFilePath := fmt.Sprintf("%s.lock", s.archivePath)
	fileLock := flock.New(lockFilePath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("error while trying to acquire file lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", common.ErrArchiveLocked, s.archivePath)
	}

	defer fileLock.Unlock()
	defer os.Remove(lockFilePath)

	tmpArchivePath := fmt.Sprintf("%s.%s", s.archivePath, uuid.New().String()[:6])

	f, err := os.OpenFile(tmpArchivePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, common.DefaultArchiveFileMode)
	if err != nil {
		return fmt.Errorf("failed to create archive <%s>: %w", tmpArchivePath, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpArchivePath)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpArchivePath)
		return fmt.Errorf("failed to close archive <%s>: %w", tmpArchivePath, err)
	}

	if err := os.Rename(tmpArchivePath, s.archivePath); err != nil {
		os.Remove(tmpArchivePath)
		return fmt.Errorf("failed to move archive into place <%s>: %w", s.archivePath, err)
	}

	log.Debug().Str("path", s.archivePath).Msg("archive stored")
	return nil
}

func (s *LocalArchiveStorage) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrArchiveNotFound, s.archivePath)
		}
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrArchiveNotFound, s.archivePath)
	}

	return f, nil
}

func (s *LocalArchiveStorage) Mode() common.StorageMode {
	return common.StorageModeLocal
}
