package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/beam-cloud/mytar/pkg/common"
)

// WriteFunc produces an archive into w.
type WriteFunc func(w io.Writer) error

// ArchiveStorageInterface is where an archive stream is stored to and read from.
type ArchiveStorageInterface interface {
	Store(ctx context.Context, write WriteFunc) error
	Open(ctx context.Context) (io.ReadCloser, error)
	Mode() common.StorageMode
}

type ArchiveStorageCredentials struct {
	S3 *S3ArchiveStorageCredentials
}

type ArchiveStorageOpts struct {
	ArchivePath string
	StorageInfo *common.S3StorageInfo
	Credentials ArchiveStorageCredentials
	HTTPClient  *http.Client

	// Stdin and Stdout back stream storage. They default to the process
	// streams.
	Stdin  io.Reader
	Stdout io.Writer
}

func NewArchiveStorage(ctx context.Context, opts ArchiveStorageOpts) (ArchiveStorageInterface, error) {
	var storage ArchiveStorageInterface = nil
	var storageMode common.StorageMode
	var err error = nil

	switch {
	case opts.StorageInfo != nil:
		storageMode = common.StorageModeS3
	case opts.ArchivePath != "":
		storageMode = common.StorageModeLocal
	default:
		storageMode = common.StorageModeStream
	}

	switch storageMode {
	case common.StorageModeS3:
		if opts.StorageInfo.Bucket == "" {
			return nil, common.ErrMissingS3Bucket
		}

		s3Opts := S3ArchiveStorageOpts{
			Bucket:         opts.StorageInfo.Bucket,
			Key:            opts.StorageInfo.Key,
			Region:         opts.StorageInfo.Region,
			Endpoint:       opts.StorageInfo.Endpoint,
			ForcePathStyle: opts.StorageInfo.ForcePathStyle,
			HTTPClient:     opts.HTTPClient,
		}
		if opts.Credentials.S3 != nil {
			s3Opts.AccessKey = opts.Credentials.S3.AccessKey
			s3Opts.SecretKey = opts.Credentials.S3.SecretKey
		}

		storage, err = NewS3ArchiveStorage(ctx, s3Opts)
	case common.StorageModeLocal:
		storage = NewLocalArchiveStorage(LocalArchiveStorageOpts{
			ArchivePath: opts.ArchivePath,
		})
	case common.StorageModeStream:
		storage = NewStreamArchiveStorage(opts.Stdin, opts.Stdout)
	default:
		err = errors.New("unsupported storage type")
	}

	if err != nil {
		return nil, err
	}

	return storage, nil
}

// StreamArchiveStorage writes archives to an output stream and reads them
// from an input stream, usually stdout and stdin.
type StreamArchiveStorage struct {
	in  io.Reader
	out io.Writer
}

func NewStreamArchiveStorage(in io.Reader, out io.Writer) *StreamArchiveStorage {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &StreamArchiveStorage{in: in, out: out}
}

func (s *StreamArchiveStorage) Store(ctx context.Context, write WriteFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return write(s.out)
}

func (s *StreamArchiveStorage) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(s.in), nil
}

func (s *StreamArchiveStorage) Mode() common.StorageMode {
	return common.StorageModeStream
}
