package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("load: %w", NewNotFoundError("cluster", ""))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "load: cluster not found", err.Error())

	err = NewValidationError("deployed_at", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "validation failed for field: deployed_at", err.Error())
}

func TestStageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("generate digest: %w", NewStageError(StageStoreWrite, cause))

	stage, ok := StageOf(err)
	assert.True(t, ok)
	assert.Equal(t, StageStoreWrite, stage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "store_write stage failed")

	_, ok = StageOf(cause)
	assert.False(t, ok)
}
