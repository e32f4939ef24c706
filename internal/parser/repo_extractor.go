package parser

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/types"
)

// maxRepoFileSize 超过此大小的文件跳过，不参与索引
const maxRepoFileSize = 1 << 20 // 1MB

// RepoExtractor 克隆Git仓库并为每个文本文件产出一个来源单元。
// 临时检出目录在所有退出路径上都会被清理。
type RepoExtractor struct {
	gitBinary    string
	cloneTimeout time.Duration
	logger       *log.Logger
}

// NewRepoExtractor 创建仓库提取器
func NewRepoExtractor(cfg *config.IngestConfig) *RepoExtractor {
	gitBinary := cfg.GitBinary
	if gitBinary == "" {
		gitBinary = "git"
	}
	timeout := 120 * time.Second
	if cfg.CloneTimeout > 0 {
		timeout = time.Duration(cfg.CloneTimeout) * time.Second
	}
	return &RepoExtractor{
		gitBinary:    gitBinary,
		cloneTimeout: timeout,
		logger:       log.New(os.Stderr, "[仓库提取] ", log.LstdFlags),
	}
}

// ExtractUnits 克隆仓库并遍历文本文件。
// 每个文件一个来源单元，带相对路径与扩展名确定的内容类型；二进制与超大文件跳过。
func (r *RepoExtractor) ExtractUnits(ctx context.Context, repoURL string) ([]types.SourceUnit, error) {
	tempDir, err := os.MkdirTemp("", "repo_clone_*")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			r.logger.Printf("清理临时目录失败: %s: %v", tempDir, rmErr)
		}
	}()

	if err := r.clone(ctx, repoURL, tempDir); err != nil {
		return nil, err
	}

	units, err := r.walkCheckout(tempDir, repoURL)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, apperr.NewExtractionError("", fmt.Sprintf("仓库 %s 中没有可处理的文本文件", repoURL))
	}

	r.logger.Printf("仓库提取完成: %s，%d 个文件", repoURL, len(units))
	return units, nil
}

// clone 浅克隆仓库到目标目录
func (r *RepoExtractor) clone(ctx context.Context, repoURL, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.gitBinary, "clone", "--depth", "1", "--single-branch", repoURL, dir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Printf("克隆 %s 到 %s", repoURL, dir)
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return apperr.NewExtractionError("", fmt.Sprintf("克隆仓库 %s 失败: %s", repoURL, detail))
	}
	return nil
}

// walkCheckout 遍历检出目录，读取文本文件
func (r *RepoExtractor) walkCheckout(root, repoURL string) ([]types.SourceUnit, error) {
	var units []types.SourceUnit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		contentType, ok := DetectContentType(relPath)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 || info.Size() > maxRepoFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if isBinary(data) {
			return nil
		}

		units = append(units, types.SourceUnit{
			Text:        string(data),
			ContentType: contentType,
			Provenance: types.Provenance{
				Source: repoURL,
				Path:   filepath.ToSlash(relPath),
				URL:    repoURL,
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历仓库检出目录失败: %w", err)
	}
	return units, nil
}

// isBinary 通过前512字节中是否存在NUL字节判断二进制内容
func isBinary(data []byte) bool {
	limit := len(data)
	if limit > 512 {
		limit = 512
	}
	return bytes.IndexByte(data[:limit], 0) >= 0
}
