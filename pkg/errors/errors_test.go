package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrNotFound, CodeOf(NotFound("drug", nil)))
	assert.Equal(t, ErrConflict, CodeOf(Conflict("already pending", nil)))
	assert.Equal(t, ErrInvalidState, CodeOf(InvalidState("nothing to resolve", nil)))
	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, ErrInternal, CodeOf(nil))
}

func TestCodeOfSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("patient", sql.ErrNoRows))
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NotFound("medication record", sql.ErrNoRows)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Equal(t, "medication record not found: sql: no rows in result set", err.Error())
}

func TestAppErrorMessageWithoutCause(t *testing.T) {
	err := Conflict("a request is already pending", nil)
	assert.Equal(t, "a request is already pending", err.Error())
}
