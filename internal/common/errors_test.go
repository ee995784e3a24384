package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesCode(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("document a.docx: %w", ExtractionServiceError("upload", cause))

	assert.True(t, errors.Is(err, ErrExtractionService))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsFatal(err))
	assert.Equal(t, "document a.docx: EXTRACTION_ERROR: upload: connection reset", err.Error())

	var app *AppError
	if assert.True(t, errors.As(err, &app)) {
		assert.Equal(t, CodeExtraction, app.Code)
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ConfigurationError("bad", nil)))
	assert.True(t, IsFatal(WrapError(OutputWriteError("rename", nil), "write report")))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.Equal(t, "OUTPUT_WRITE_ERROR: rename", OutputWriteError("rename", nil).Error())
	assert.Nil(t, WrapError(nil, "nothing"))
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = WithRunID(WithRequestID(ctx, "req-1"), "run-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
}
