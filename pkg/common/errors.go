package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies archive failures. Every error returned by the archiver
// carries exactly one kind.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindLimitExceeded
	KindIOFailure
	KindDecodeFailure
	KindTruncatedArchive
)

var (
	ErrLimitExceeded    = errors.New("archive limit exceeded")
	ErrIOFailure        = errors.New("archive i/o failure")
	ErrDecodeFailure    = errors.New("archive decode failure")
	ErrTruncatedArchive = errors.New("truncated archive")
)

var (
	ErrTooManyFiles     = fmt.Errorf("too many files (max %d)", MaxFileCount)
	ErrFilenameTooLong  = fmt.Errorf("filename too long (max %d bytes)", MaxFilenameLength)
	ErrEmptyFilename    = errors.New("empty filename")
	ErrInvalidFilename  = errors.New("filename is not valid utf-8")
	ErrUnsafeFilename   = errors.New("filename is not a local relative path")
	ErrNotRegularFile   = errors.New("not a regular file")
	ErrFileChanged      = errors.New("file changed size while being archived")
	ErrFileTooLarge     = errors.New("file too large")
	ErrArchiveNotFound  = errors.New("archive not found")
	ErrArchiveLocked    = errors.New("archive is locked by another process")
	ErrMissingS3Bucket  = errors.New("s3 bucket not provided")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

func (k ErrorKind) String() string {
	switch k {
	case KindLimitExceeded:
		return "limit exceeded"
	case KindIOFailure:
		return "i/o failure"
	case KindDecodeFailure:
		return "decode failure"
	case KindTruncatedArchive:
		return "truncated archive"
	}
	return "unknown"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindLimitExceeded:
		return ErrLimitExceeded
	case KindIOFailure:
		return ErrIOFailure
	case KindDecodeFailure:
		return ErrDecodeFailure
	case KindTruncatedArchive:
		return ErrTruncatedArchive
	}
	return nil
}

// ArchiveError is returned by archive operations. It matches its kind sentinel
// with errors.Is and unwraps to the underlying cause.
type ArchiveError struct {
	Kind ErrorKind
	Op   string
	Name string
	Err  error
}

func NewArchiveError(kind ErrorKind, op, name string, err error) *ArchiveError {
	return &ArchiveError{Kind: kind, Op: op, Name: name, Err: err}
}

func (e *ArchiveError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Name, e.Kind, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind. A truncated
// archive is also a decode failure.
func (e *ArchiveError) Is(target error) bool {
	if target == e.Kind.sentinel() {
		return true
	}
	return e.Kind == KindTruncatedArchive && target == ErrDecodeFailure
}

// KindOf returns the kind of the first ArchiveError in err's chain.
func KindOf(err error) ErrorKind {
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
