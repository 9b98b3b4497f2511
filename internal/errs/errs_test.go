package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("create asset: %w", Validation("code %q already exists", "LAP-001"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, `code "LAP-001" already exists`, Message(err))
	assert.Equal(t, `create asset: validation error: code "LAP-001" already exists`, err.Error())
}

func TestDuplicateIsValidation(t *testing.T) {
	err := E(ErrDuplicate, "email")
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNotFound(t *testing.T) {
	err := NotFound("ticket", 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "ticket 42", Message(err))
}
