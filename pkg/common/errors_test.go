package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArchiveErrorMatchesKind(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		sentinel error
	}{
		{KindLimitExceeded, ErrLimitExceeded},
		{KindIOFailure, ErrIOFailure},
		{KindDecodeFailure, ErrDecodeFailure},
		{KindTruncatedArchive, ErrTruncatedArchive},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewArchiveError(tc.kind, "op", "name", ErrFileChanged))

			assert.ErrorIs(t, err, tc.sentinel)
			assert.ErrorIs(t, err, ErrFileChanged)
			assert.Equal(t, tc.kind, KindOf(err))

			for _, other := range tests {
				if other.kind == tc.kind {
					continue
				}
				if tc.kind == KindTruncatedArchive && other.kind == KindDecodeFailure {
					assert.ErrorIs(t, err, other.sentinel)
					continue
				}
				assert.NotErrorIs(t, err, other.sentinel)
			}
		})
	}
}

func TestArchiveErrorMessage(t *testing.T) {
	err := NewArchiveError(KindLimitExceeded, "create", "a.txt", ErrFilenameTooLong)
	assert.Equal(t, `create "a.txt": limit exceeded: filename too long (max 255 bytes)`, err.Error())

	err = NewArchiveError(KindIOFailure, "extract", "", errors.New("boom"))
	assert.Equal(t, "extract: i/o failure: boom", err.Error())
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, "unknown", KindUnknown.String())
}
