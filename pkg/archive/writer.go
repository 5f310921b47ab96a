package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/beam-cloud/mytar/pkg/common"
)

// Create writes an archive of paths to w, in order. The count and every name
// are validated before anything is written, so limit violations leave w
// untouched. A failure while streaming file content leaves a partial archive
// in w.
func (a *Archiver) Create(w io.Writer, paths []string) error {
	if len(paths) > common.MaxFileCount {
		return common.NewArchiveError(common.KindLimitExceeded, "create", "",
			fmt.Errorf("%w: got %d", common.ErrTooManyFiles, len(paths)))
	}
	for _, p := range paths {
		if err := validateName(p); err != nil {
			return err
		}
	}

	a.log.Debug().Int("files", len(paths)).Msg("writing archive header")

	if _, err := w.Write(encodeHeader(uint16(len(paths)))); err != nil {
		return common.NewArchiveError(common.KindIOFailure, "create", "", err)
	}

	buf := make([]byte, a.chunkSize)
	for i, p := range paths {
		if err := a.writeEntry(w, i, p, buf); err != nil {
			return err
		}
	}

	return nil
}

func (a *Archiver) writeEntry(w io.Writer, index int, name string, buf []byte) error {
	f, err := os.Open(a.sourcePath(name))
	if err != nil {
		return common.NewArchiveError(common.KindIOFailure, "create", name, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return common.NewArchiveError(common.KindIOFailure, "create", name, err)
	}
	if !fi.Mode().IsRegular() {
		return common.NewArchiveError(common.KindIOFailure, "create", name, common.ErrNotRegularFile)
	}

	// os.FileInfo sizes are int64, so every size fits the u64 field.
	size := fi.Size()

	a.log.Debug().
		Int("entry", index).
		Str("name", name).
		Int("name_length", len(name)).
		Int64("size", size).
		Msg("writing entry")

	if _, err := w.Write(encodeEntryPrefix(name, uint64(size))); err != nil {
		return common.NewArchiveError(common.KindIOFailure, "create", name, err)
	}

	n, err := io.CopyBuffer(chunkWriter{w}, io.LimitReader(f, size), buf)
	if err != nil {
		return common.NewArchiveError(common.KindIOFailure, "create", name, err)
	}
	if n != size {
		return common.NewArchiveError(common.KindIOFailure, "create", name,
			fmt.Errorf("%w: expected %d bytes, read %d", common.ErrFileChanged, size, n))
	}

	a.recordEntry(common.EntryInfo{Index: index, Name: name, Size: uint64(size)})
	return nil
}
