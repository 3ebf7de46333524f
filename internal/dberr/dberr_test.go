package dberr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapClassifiesDeadlineAsTimeout(t *testing.T) {
	err := Wrap("account.get", fmt.Errorf("redis: %w", context.DeadlineExceeded))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, Is(err))
}

func TestWrapDefaultsToUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap("account.create", cause)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "account.create")
}

func TestWrapKeepsExistingClassification(t *testing.T) {
	first := Corrupt("account.get", errors.New("bad balance"))
	again := Wrap("transfer.execute", first)

	assert.Same(t, first, again)
	assert.ErrorIs(t, again, ErrCorrupt)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap("noop", nil))
	assert.False(t, Is(errors.New("plain")))
}
