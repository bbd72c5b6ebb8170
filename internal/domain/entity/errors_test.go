package entity

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("extract: %w", Errorf(KindNotFound, "source video for %s not found", "abc"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "extract: source video for abc not found", err.Error())
}

func TestErrorUnwrapsCause(t *testing.T) {
	err := NewError(KindDecode, "read frame", io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Equal(t, "read frame: unexpected EOF", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("disk full")))
	assert.False(t, IsPermanent(errors.New("disk full")))
	assert.True(t, IsPermanent(Errorf(KindValidation, "bad fps")))
}

func TestErrorWithoutMessageUsesKind(t *testing.T) {
	assert.Equal(t, "size_limit", ErrSizeLimit.Error())
}
