package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractGitHubLinks(t *testing.T) {
	text := `个人项目:
https://github.com/alice/rag-engine 一个检索增强生成引擎
参见 https://github.com/alice/rag-engine （同上）
还有 https://github.com/alice/dotfiles.git
以及普通链接 https://example.com/alice/other`

	links := ExtractGitHubLinks(text)
	assert.Equal(t, []string{
		"https://github.com/alice/dotfiles",
		"https://github.com/alice/rag-engine",
	}, links)
}

func TestExtractGitHubLinksNone(t *testing.T) {
	assert.Empty(t, ExtractGitHubLinks("没有任何链接的简历文本"))
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "rag-engine", RepoName("https://github.com/alice/rag-engine"))
	assert.Equal(t, "dotfiles", RepoName("https://github.com/alice/dotfiles/"))
}
