package parser

import (
	"strings"
	"testing"

	"ai-interview-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitterValidation(t *testing.T) {
	_, err := NewSplitter(SplitterConfig{ChunkSize: 0, ChunkOverlap: 0})
	assert.Error(t, err)

	_, err = NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 100})
	assert.Error(t, err)

	_, err = NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})
	assert.NoError(t, err)
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 1000, ChunkOverlap: 200})
	require.NoError(t, err)

	units := []types.SourceUnit{{
		Text:        "候选人熟悉Go语言和分布式系统。",
		ContentType: types.ContentTypeProse,
		Provenance:  types.Provenance{Source: "resume"},
	}}
	chunks := s.Split(units)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, "resume", chunks[0].Provenance.Source)
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 50, ChunkOverlap: 10})
	require.NoError(t, err)

	paras := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		paras = append(paras, "this is a fairly plain paragraph of text")
	}
	units := []types.SourceUnit{{
		Text:        strings.Join(paras, "\n\n"),
		ContentType: types.ContentTypeProse,
		Provenance:  types.Provenance{Source: "pdf", Page: 3},
	}}

	chunks := s.Split(units)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 50, "分块超出大小上限: %q", c.Text)
		assert.Equal(t, 3, c.Provenance.Page)
	}
	// 序号保持递增
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Seq+1, chunks[i].Seq)
	}
}

func TestSplitMixedSeparatorsStaysBounded(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 20})
	require.NoError(t, err)

	// 一串小段落后面跟一个接近上限的大片段：
	// 重叠尾巴加上大片段不得拼成超限分块
	text := strings.Repeat("para\n\n", 30) + strings.Repeat("x", 100)
	units := []types.SourceUnit{{
		Text:        text,
		ContentType: types.ContentTypeProse,
	}}

	chunks := s.Split(units)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 100, "分块超出大小上限: %q", c.Text)
	}
}

func TestSplitOverlapTailNeverOverflows(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 4})
	require.NoError(t, err)

	units := []types.SourceUnit{{
		Text:        "aa bb cc dddddddd eeeeeeee",
		ContentType: types.ContentTypeGeneric,
	}}

	chunks := s.Split(units)
	require.Len(t, chunks, 3)
	// 大片段独立成块，重叠尾巴既不带入也不单独重复成块
	assert.Equal(t, "aa bb cc", chunks[0].Text)
	assert.Equal(t, "dddddddd", chunks[1].Text)
	assert.Equal(t, "eeeeeeee", chunks[2].Text)
}

func TestSplitPythonPrefersFunctionBoundaries(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 80, ChunkOverlap: 0})
	require.NoError(t, err)

	code := "def first():\n    return 1\n\ndef second():\n    return 2\n\ndef third():\n    value = 40 + 2\n    return value\n"
	units := []types.SourceUnit{{
		Text:        code,
		ContentType: types.ContentTypePython,
		Provenance:  types.Provenance{Source: "https://github.com/u/repo", Path: "main.py"},
	}}

	chunks := s.Split(units)
	require.Greater(t, len(chunks), 1)
	// 切分应落在函数边界上：没有函数体被拦腰截断
	for _, c := range chunks {
		if strings.Contains(c.Text, "def ") {
			assert.True(t, strings.Contains(c.Text, "return") || len([]rune(c.Text)) <= 80)
		}
	}
}

func TestSplitOverlapBetweenConsecutiveChunks(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 40, ChunkOverlap: 15})
	require.NoError(t, err)

	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	units := []types.SourceUnit{{
		Text:        strings.Join(words, " "),
		ContentType: types.ContentTypeGeneric,
	}}

	chunks := s.Split(units)
	require.Greater(t, len(chunks), 2)
	// 相邻分块应有内容重叠
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Text[len(chunks[i-1].Text)-4:]
		assert.Contains(t, chunks[i].Text, strings.TrimSpace(prevTail))
	}
}

func TestSplitSkipsEmptyUnits(t *testing.T) {
	s, err := NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 0})
	require.NoError(t, err)

	chunks := s.Split([]types.SourceUnit{
		{Text: "   \n  ", ContentType: types.ContentTypeProse},
		{Text: "actual content", ContentType: types.ContentTypeProse},
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, "actual content", chunks[0].Text)
}

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		path string
		want types.ContentType
		ok   bool
	}{
		{"app/main.py", types.ContentTypePython, true},
		{"web/index.ts", types.ContentTypeJS, true},
		{"README.md", types.ContentTypeMarkdown, true},
		{"cmd/server/main.go", types.ContentTypeGo, true},
		{"config.yaml", types.ContentTypeGeneric, true},
		{"Makefile", types.ContentTypeGeneric, true},
		{"logo.png", "", false},
		{"binary.exe", "", false},
	}
	for _, tc := range cases {
		got, ok := DetectContentType(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		if ok {
			assert.Equal(t, tc.want, got, tc.path)
		}
	}
}
