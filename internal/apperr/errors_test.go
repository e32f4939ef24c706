package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceErrorIs(t *testing.T) {
	err := NewSessionNotFoundError("sess-123")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.False(t, errors.Is(err, ErrEmptyCorpus))

	wrapped := fmt.Errorf("打开索引: %w", err)
	assert.True(t, errors.Is(wrapped, ErrSessionNotFound))
}

func TestSourceErrorMessage(t *testing.T) {
	err := NewExtractionError("sess-1", "视频没有可用字幕")
	assert.Contains(t, err.Error(), "sess-1")
	assert.Contains(t, err.Error(), "视频没有可用字幕")

	var srcErr *SourceError
	assert.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "extract", srcErr.Op)
}
