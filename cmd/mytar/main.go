package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/beam-cloud/mytar/pkg/common"
	"github.com/beam-cloud/mytar/pkg/mytar"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(args) < 2 {
		fmt.Fprintf(stderr, "Incorrect number of arguments!\n\n")
		printUsage(stderr)
		return 1
	}

	var err error
	switch command := args[0]; command {
	case "c":
		err = createCommand(ctx, args[1:], stdout, stderr)
	case "x":
		err = extractCommand(ctx, args[1:], stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command %q!\n\n", command)
		printUsage(stderr)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		printUsage(stderr)
	default:
		log.Error().Err(err).Msg("mytar failed")
	}
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `mytar - pack files into a flat archive and unpack them again

Usage:
  mytar c [options] <files to archive...>
  mytar x [options] <archive to extract>

Commands:
  c    Write an archive of the given files to stdout (or -f / S3)
  x    Extract an archive into the current directory (or -C)

Environment Variables:
  MYTAR_VERBOSE      Verbose logging (default: false)
  MYTAR_CHUNK_SIZE   Copy buffer size in bytes (default: %d)
  MYTAR_S3_BUCKET    S3 bucket holding the archive
  MYTAR_S3_ENDPOINT  Custom S3 endpoint
  AWS_REGION         S3 region

`, common.DefaultChunkSize)
}

type s3Flags struct {
	bucket    string
	key       string
	region    string
	endpoint  string
	pathStyle bool
}

func (f *s3Flags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.bucket, "s3-bucket", getEnvString("MYTAR_S3_BUCKET", ""), "S3 bucket holding the archive")
	fs.StringVar(&f.key, "s3-key", "", "S3 object key of the archive")
	fs.StringVar(&f.region, "s3-region", getEnvString("AWS_REGION", ""), "S3 region")
	fs.StringVar(&f.endpoint, "s3-endpoint", getEnvString("MYTAR_S3_ENDPOINT", ""), "Custom S3 endpoint")
	fs.BoolVar(&f.pathStyle, "s3-path-style", false, "Use path-style S3 addressing")
}

// storageInfo returns nil when no bucket is configured.
func (f *s3Flags) storageInfo() (*common.S3StorageInfo, error) {
	if f.bucket == "" {
		return nil, nil
	}
	if f.key == "" {
		return nil, fmt.Errorf("--s3-key is required with --s3-bucket")
	}
	return &common.S3StorageInfo{
		Bucket:         f.bucket,
		Key:            f.key,
		Region:         f.region,
		Endpoint:       f.endpoint,
		ForcePathStyle: f.pathStyle,
	}, nil
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *bool, *int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	verbose := new(bool)
	defaultVerbose := getEnvBool("MYTAR_VERBOSE", false)
	fs.BoolVar(verbose, "v", defaultVerbose, "Verbose logging")
	fs.BoolVar(verbose, "verbose", defaultVerbose, "Verbose logging")
	chunkSize := fs.Int("chunk-size", getEnvInt("MYTAR_CHUNK_SIZE", common.DefaultChunkSize), "Copy buffer size in bytes")

	return fs, verbose, chunkSize
}

func createCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, verbose, chunkSize := newFlagSet("c", stderr)

	var (
		outputFile = fs.String("f", "", "Write the archive to this file instead of stdout")
		sourcePath = fs.String("C", "", "Resolve relative input paths against this directory")
		s3         s3Flags
	)
	s3.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(stderr, "Error: no files to archive\n\n")
		return errUsage
	}

	if *verbose {
		if err := mytar.SetLogLevel("debug"); err != nil {
			return err
		}
	}

	storageInfo, err := s3.storageInfo()
	if err != nil {
		return err
	}

	return mytar.CreateArchive(ctx, mytar.CreateOptions{
		Paths:       fs.Args(),
		SourcePath:  *sourcePath,
		OutputFile:  *outputFile,
		Output:      stdout,
		StorageInfo: storageInfo,
		Verbose:     *verbose,
		ChunkSize:   *chunkSize,
	})
}

func extractCommand(ctx context.Context, args []string, stderr io.Writer) error {
	fs, verbose, chunkSize := newFlagSet("x", stderr)

	var (
		outputPath = fs.String("C", "", "Extract into this directory instead of the current one")
		s3         s3Flags
	)
	s3.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *verbose {
		if err := mytar.SetLogLevel("debug"); err != nil {
			return err
		}
	}

	storageInfo, err := s3.storageInfo()
	if err != nil {
		return err
	}

	var archivePath string
	if storageInfo == nil {
		if fs.NArg() != 1 {
			fmt.Fprintf(stderr, "Error: x takes exactly one archive\n\n")
			return errUsage
		}

		archivePath = fs.Arg(0)
		if _, err := os.Stat(archivePath); err != nil {
			return fmt.Errorf("archive %q does not exist: %w", archivePath, common.ErrArchiveNotFound)
		}
	} else if fs.NArg() != 0 {
		fmt.Fprintf(stderr, "Error: x takes no archive path with --s3-bucket\n\n")
		return errUsage
	}

	return mytar.ExtractArchive(ctx, mytar.ExtractOptions{
		InputFile:   archivePath,
		StorageInfo: storageInfo,
		OutputPath:  *outputPath,
		Verbose:     *verbose,
		ChunkSize:   *chunkSize,
	})
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
