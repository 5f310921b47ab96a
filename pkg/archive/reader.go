package archive

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/beam-cloud/mytar/pkg/common"
)

// Extract reads an archive from r and recreates every entry under the output
// path, in stored order. Existing files are truncated. A stream that ends
// before the declared entries are complete fails with ErrTruncatedArchive and
// the partially written file is removed; entries extracted before it remain.
// Bytes after the last declared entry are never inspected.
func (a *Archiver) Extract(r io.Reader) error {
	d := newDecoder(bufio.NewReaderSize(r, a.chunkSize))

	count, err := d.readHeader()
	if err != nil {
		return err
	}

	a.log.Debug().Int("files", count).Msg("read archive header")

	buf := make([]byte, a.chunkSize)
	for i := 0; i < count; i++ {
		name, err := d.readName(i)
		if err != nil {
			return err
		}
		if err := checkExtractName(name); err != nil {
			return err
		}

		size, err := d.readContentLength()
		if err != nil {
			return err
		}

		a.log.Debug().
			Int("entry", i).
			Str("name", name).
			Int("name_length", len(name)).
			Int64("size", size).
			Msg("extracting entry")

		if err := a.extractEntry(d, name, size, buf); err != nil {
			return err
		}

		a.recordEntry(common.EntryInfo{Index: i, Name: name, Size: uint64(size)})
		d.next(count - i - 1)
	}

	return nil
}

// checkExtractName rejects names that would land outside the output path.
// Names with separators are allowed and recreate their parent directories.
func checkExtractName(name string) error {
	if name == "" {
		return common.NewArchiveError(common.KindDecodeFailure, "extract", name, common.ErrEmptyFilename)
	}
	if !filepath.IsLocal(name) {
		return common.NewArchiveError(common.KindDecodeFailure, "extract", name, common.ErrUnsafeFilename)
	}
	return nil
}

func (a *Archiver) extractEntry(d *decoder, name string, size int64, buf []byte) error {
	target := a.outputPath(name)

	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(a.outputPath(dir), common.DefaultExtractedDirMode); err != nil {
			return common.NewArchiveError(common.KindIOFailure, "extract", name, err)
		}
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, common.DefaultExtractedFileMode)
	if err != nil {
		return common.NewArchiveError(common.KindIOFailure, "extract", name, err)
	}

	n, err := io.CopyBuffer(chunkWriter{f}, d.content(size), buf)
	if err != nil || n != size {
		f.Close()
		os.Remove(target)
		if err != nil {
			return common.NewArchiveError(common.KindIOFailure, "extract", name, err)
		}
		return d.truncated()
	}

	if err := f.Close(); err != nil {
		return common.NewArchiveError(common.KindIOFailure, "extract", name, err)
	}
	return nil
}
