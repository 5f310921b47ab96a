package mytar

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beam-cloud/mytar/pkg/archive"
	"github.com/beam-cloud/mytar/pkg/common"
	"github.com/beam-cloud/mytar/pkg/metrics"
	"github.com/beam-cloud/mytar/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the logging verbosity for the library.
// Valid levels: "debug", "info", "warn", "error", "disabled"
func SetLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "none", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error, disabled", level)
	}
	return nil
}

type CreateOptions struct {
	Paths      []string
	SourcePath string

	// OutputFile stores the archive as a local file. When neither OutputFile
	// nor StorageInfo is set the archive is written to Output, or stdout.
	OutputFile  string
	Output      io.Writer
	StorageInfo *common.S3StorageInfo
	Credentials storage.ArchiveStorageCredentials

	Verbose   bool
	ChunkSize int
	Metrics   *metrics.Metrics
}

type ExtractOptions struct {
	// InputFile reads the archive from a local file. When neither InputFile
	// nor StorageInfo is set the archive is read from Input, or stdin.
	InputFile   string
	Input       io.Reader
	StorageInfo *common.S3StorageInfo
	Credentials storage.ArchiveStorageCredentials

	OutputPath string
	Verbose    bool
	ChunkSize  int
	Metrics    *metrics.Metrics
}

// Create Archive
func CreateArchive(ctx context.Context, options CreateOptions) error {
	m := options.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}

	a, err := archive.NewArchiver(archive.ArchiverOptions{
		Verbose:    options.Verbose,
		SourcePath: options.SourcePath,
		ChunkSize:  options.ChunkSize,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	s, err := storage.NewArchiveStorage(ctx, storage.ArchiveStorageOpts{
		ArchivePath: options.OutputFile,
		StorageInfo: options.StorageInfo,
		Credentials: options.Credentials,
		Stdout:      options.Output,
	})
	if err != nil {
		return err
	}

	log.Debug().Int("files", len(options.Paths)).Str("storage", string(s.Mode())).Msg("creating archive")

	err = s.Store(ctx, func(w io.Writer) error {
		return a.Create(w, options.Paths)
	})
	if err != nil {
		return err
	}

	if options.Verbose {
		m.LogSummary(log.Logger, "create")
	}
	return nil
}

// Extract Archive
func ExtractArchive(ctx context.Context, options ExtractOptions) error {
	m := options.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}

	a, err := archive.NewArchiver(archive.ArchiverOptions{
		Verbose:    options.Verbose,
		OutputPath: options.OutputPath,
		ChunkSize:  options.ChunkSize,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	s, err := storage.NewArchiveStorage(ctx, storage.ArchiveStorageOpts{
		ArchivePath: options.InputFile,
		StorageInfo: options.StorageInfo,
		Credentials: options.Credentials,
		Stdin:       options.Input,
	})
	if err != nil {
		return err
	}

	r, err := s.Open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	if options.OutputPath != "" {
		if err := os.MkdirAll(options.OutputPath, common.DefaultExtractedDirMode); err != nil {
			return err
		}
	}

	log.Debug().Str("storage", string(s.Mode())).Str("output", options.OutputPath).Msg("extracting archive")

	if err := a.Extract(r); err != nil {
		return err
	}

	if options.Verbose {
		m.LogSummary(log.Logger, "extract")
	}
	return nil
}
