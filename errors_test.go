package tigstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"generic", errors.New("boom"), 1},
		{"deleted", ErrTigDeleted, 1},
		{"corrupt store", &CorruptStoreError{Path: "x", Reason: "bad"}, 2},
		{"corrupt payload", &CorruptPayloadError{TigID: 3}, 2},
		{"wrapped corrupt", fmt.Errorf("open: %w", &CorruptStoreError{Path: "x", Reason: "bad"}), 2},
		{"overflow", ErrVersionOverflow, 3},
		{"wrapped overflow", fmt.Errorf("advance: %w", ErrVersionOverflow), 3},
		{"io", &IOError{Op: "read", Version: 1}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestIOErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &IOError{Op: "append", Version: 2, Offset: 128, cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "append")
}

func TestCorruptStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("short read")
	err := &CorruptStoreError{Path: "/s", Reason: "torn tail", cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "torn tail")
}
