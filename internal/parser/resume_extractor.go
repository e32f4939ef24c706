package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/types"
)

// githubRepoPattern 匹配简历文本中的GitHub仓库链接
var githubRepoPattern = regexp.MustCompile(`https?://github\.com/([a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+)`)

// ResumeExtractor 提取简历全文并扫描其中的GitHub仓库链接。
// PDF走本地解析器，DOCX等格式走Tika。
type ResumeExtractor struct {
	pdf  *EinoPDFExtractor
	tika *TikaExtractor
}

// NewResumeExtractor 创建简历提取器
func NewResumeExtractor(pdf *EinoPDFExtractor, tika *TikaExtractor) *ResumeExtractor {
	return &ResumeExtractor{pdf: pdf, tika: tika}
}

// Extract 提取简历文本：完整文本作为一个来源单元，外加发现的仓库链接。
// 返回: 来源单元, 去重后的仓库URL列表, 错误
func (r *ResumeExtractor) Extract(ctx context.Context, data []byte, filename string) (types.SourceUnit, []string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	var err error
	switch {
	case ext == ".pdf":
		text, err = r.pdf.ExtractFullText(ctx, data, filename)
	case SupportsExtension(ext):
		text, err = r.tika.ExtractText(ctx, data, ext)
	default:
		return types.SourceUnit{}, nil, apperr.NewUnsupportedFormatError("",
			fmt.Sprintf("不支持的简历格式: %s", ext))
	}
	if err != nil {
		return types.SourceUnit{}, nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return types.SourceUnit{}, nil, apperr.NewExtractionError("", "无法从简历中提取出文本")
	}

	unit := types.SourceUnit{
		Text:        text,
		ContentType: types.ContentTypeProse,
		Provenance: types.Provenance{
			Source: "resume",
			Path:   filename,
		},
	}
	return unit, ExtractGitHubLinks(text), nil
}

// ExtractGitHubLinks 扫描文本中的GitHub仓库链接，按URL去重并归一化
func ExtractGitHubLinks(text string) []string {
	matches := githubRepoPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		repo := strings.TrimSuffix(m[1], ".git")
		link := "https://github.com/" + repo
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// RepoName 从仓库URL截取仓库名
func RepoName(repoURL string) string {
	parts := strings.Split(strings.TrimRight(repoURL, "/"), "/")
	return parts[len(parts)-1]
}
