package archive

import (
	"io"
	"path/filepath"

	"github.com/beam-cloud/mytar/pkg/common"
	"github.com/beam-cloud/mytar/pkg/metrics"
	"github.com/rs/zerolog"
	log "github.com/rs/zerolog/log"
)

type ArchiverOptions struct {
	Verbose bool

	// SourcePath is joined to relative input paths when opening them for
	// Create. The stored name is always the path as given.
	SourcePath string

	// OutputPath is the directory Extract writes into. Defaults to the
	// current working directory.
	OutputPath string

	// ChunkSize is the size of the buffer file content is streamed through.
	// No single content write is larger than ChunkSize.
	ChunkSize int

	Metrics *metrics.Metrics

	// Logger overrides the logger used for verbose diagnostics.
	Logger *zerolog.Logger
}

// Archiver writes and reads the flat archive format described in
// common/format.go. An Archiver is not safe for concurrent use.
type Archiver struct {
	opts      ArchiverOptions
	chunkSize int
	log       zerolog.Logger
}

func NewArchiver(opts ArchiverOptions) (*Archiver, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = common.DefaultChunkSize
	}
	if chunkSize < 0 {
		return nil, common.ErrInvalidChunkSize
	}

	return &Archiver{
		opts:      opts,
		chunkSize: chunkSize,
		log:       newLogger(opts),
	}, nil
}

func newLogger(opts ArchiverOptions) zerolog.Logger {
	if !opts.Verbose {
		return zerolog.Nop()
	}

	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	return base.With().Str("component", "archiver").Logger().Level(zerolog.DebugLevel)
}

func (a *Archiver) sourcePath(name string) string {
	if a.opts.SourcePath == "" {
		return name
	}
	return filepath.Join(a.opts.SourcePath, name)
}

func (a *Archiver) outputPath(name string) string {
	if a.opts.OutputPath == "" {
		return name
	}
	return filepath.Join(a.opts.OutputPath, name)
}

// chunkWriter hides any ReadFrom method of the wrapped writer, so
// io.CopyBuffer always copies through the archiver's buffer.
type chunkWriter struct {
	io.Writer
}

func (a *Archiver) recordEntry(entry common.EntryInfo) {
	if a.opts.Metrics != nil {
		a.opts.Metrics.RecordEntry(entry.Name, entry.Size)
	}
}
