package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"unicode/utf8"

	"github.com/beam-cloud/mytar/pkg/common"
)

func encodeHeader(count uint16) []byte {
	b := make([]byte, common.HeaderLength)
	binary.LittleEndian.PutUint16(b, count)
	return b
}

// encodeEntryPrefix returns every field of an entry that precedes its content:
// name_length, name and content_length.
func encodeEntryPrefix(name string, size uint64) []byte {
	b := make([]byte, 0, common.EntryNameLengthSize+len(name)+common.EntryContentLengthSize)
	b = append(b, uint8(len(name)))
	b = append(b, name...)
	return binary.LittleEndian.AppendUint64(b, size)
}

// validateName checks that name can be stored as an entry name. Names are
// held to the same rule Extract applies, so every archive Create produces can
// be extracted.
func validateName(name string) error {
	switch {
	case len(name) == 0:
		return common.NewArchiveError(common.KindLimitExceeded, "create", name, common.ErrEmptyFilename)
	case len(name) > common.MaxFilenameLength:
		return common.NewArchiveError(common.KindLimitExceeded, "create", name,
			fmt.Errorf("%w: got %d", common.ErrFilenameTooLong, len(name)))
	case !utf8.ValidString(name):
		return common.NewArchiveError(common.KindDecodeFailure, "create", name, common.ErrInvalidFilename)
	case !filepath.IsLocal(name):
		return common.NewArchiveError(common.KindDecodeFailure, "create", name, common.ErrUnsafeFilename)
	}
	return nil
}

type cursorState int

const (
	stateAwaitingHeader cursorState = iota
	stateAwaitingEntryName
	stateAwaitingEntryNameBytes
	stateAwaitingEntryContentLength
	stateAwaitingEntryContentBytes
	stateDone
)

func (s cursorState) String() string {
	switch s {
	case stateAwaitingHeader:
		return "reading header"
	case stateAwaitingEntryName:
		return "reading entry name length"
	case stateAwaitingEntryNameBytes:
		return "reading entry name bytes"
	case stateAwaitingEntryContentLength:
		return "reading entry content length"
	case stateAwaitingEntryContentBytes:
		return "reading entry content bytes"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// decoder is a forward-only cursor over an archive stream.
type decoder struct {
	r     io.Reader
	state cursorState
	entry int
	name  string
	buf   [common.EntryContentLengthSize]byte
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: r, state: stateAwaitingHeader}
}

func (d *decoder) readFull(b []byte, next cursorState) error {
	if _, err := io.ReadFull(d.r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return d.truncated()
		}
		return common.NewArchiveError(common.KindIOFailure, "extract", d.name, err)
	}
	d.state = next
	return nil
}

func (d *decoder) truncated() error {
	err := fmt.Errorf("%w while %s", io.ErrUnexpectedEOF, d.state)
	if d.state != stateAwaitingHeader {
		err = fmt.Errorf("%w of entry %d", err, d.entry)
	}
	return common.NewArchiveError(common.KindTruncatedArchive, "extract", d.name, err)
}

func (d *decoder) readHeader() (int, error) {
	b := d.buf[:common.HeaderLength]
	if err := d.readFull(b, stateAwaitingEntryName); err != nil {
		return 0, err
	}

	count := int(binary.LittleEndian.Uint16(b))
	if count == 0 {
		d.state = stateDone
	}
	return count, nil
}

func (d *decoder) readName(entry int) (string, error) {
	d.entry = entry
	d.name = ""

	b := d.buf[:common.EntryNameLengthSize]
	if err := d.readFull(b, stateAwaitingEntryNameBytes); err != nil {
		return "", err
	}

	name := make([]byte, b[0])
	if err := d.readFull(name, stateAwaitingEntryContentLength); err != nil {
		return "", err
	}
	if !utf8.Valid(name) {
		return "", common.NewArchiveError(common.KindDecodeFailure, "extract", fmt.Sprintf("%x", name), common.ErrInvalidFilename)
	}

	d.name = string(name)
	return d.name, nil
}

func (d *decoder) readContentLength() (int64, error) {
	b := d.buf[:common.EntryContentLengthSize]
	if err := d.readFull(b, stateAwaitingEntryContentBytes); err != nil {
		return 0, err
	}

	size := binary.LittleEndian.Uint64(b)
	if size > math.MaxInt64 {
		return 0, common.NewArchiveError(common.KindLimitExceeded, "extract", d.name,
			fmt.Errorf("%w: content length %d", common.ErrFileTooLarge, size))
	}
	return int64(size), nil
}

// content returns a reader over the current entry's content. The caller must
// consume exactly size bytes and then call next.
func (d *decoder) content(size int64) io.Reader {
	return io.LimitReader(d.r, size)
}

func (d *decoder) next(remaining int) {
	if remaining == 0 {
		d.state = stateDone
		return
	}
	d.state = stateAwaitingEntryName
}
