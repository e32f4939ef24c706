package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-interview-go/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?list=abc&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://example.com/video", "", false},
	}
	for _, tc := range cases {
		got, err := ParseVideoID(tc.url)
		if tc.ok {
			assert.NoError(t, err, tc.url)
			assert.Equal(t, tc.want, got)
		} else {
			assert.True(t, errors.Is(err, apperr.ErrUnsupportedFormat), tc.url)
		}
	}
}

func TestExtractUnitsFromTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") != "en" {
			w.Write([]byte(""))
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="2.5">hello world</text>
  <text start="2.5" dur="3.0">this video is about &amp;go</text>
  <text start="5.5" dur="1.0">  </text>
</transcript>`))
	}))
	defer server.Close()

	y := NewYouTubeExtractor(
		WithTimedTextBaseURL(server.URL),
		WithLanguages("en"),
	)

	units, err := y.ExtractUnits(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "hello world", units[0].Text)
	assert.Equal(t, "this video is about &go", units[1].Text)
	assert.Equal(t, "youtube", units[0].Provenance.Source)
}

func TestExtractUnitsNoTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// timedtext对无字幕视频返回空body
		w.Write([]byte(""))
	}))
	defer server.Close()

	y := NewYouTubeExtractor(
		WithTimedTextBaseURL(server.URL),
		WithLanguages("en", "zh"),
	)

	_, err := y.ExtractUnits(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrExtractionFailed))
}
