package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/config"
)

// TikaExtractor 通过Tika服务器提取非PDF文档（DOCX等）的纯文本
type TikaExtractor struct {
	serverURL  string
	httpClient *http.Client
	logger     *log.Logger
}

// TikaOption Tika提取器的配置选项
type TikaOption func(*TikaExtractor)

// WithTikaTimeout 设置HTTP超时
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(t *TikaExtractor) {
		t.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithTikaLogger 设置自定义日志记录器
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(t *TikaExtractor) {
		t.logger = logger
	}
}

// NewTikaExtractor 创建Tika文本提取器
func NewTikaExtractor(cfg *config.TikaConfig, options ...TikaOption) *TikaExtractor {
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	t := &TikaExtractor{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.New(os.Stderr, "[Tika] ", log.LstdFlags),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// contentTypeByExt Tika请求的Content-Type提示
var contentTypeByExt = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".pdf":  "application/pdf",
	".rtf":  "application/rtf",
	".odt":  "application/vnd.oasis.opendocument.text",
}

// SupportsExtension 判断Tika路径是否支持该扩展名
func SupportsExtension(ext string) bool {
	_, ok := contentTypeByExt[strings.ToLower(ext)]
	return ok
}

// ExtractText 提取文档全文。ext用于设置Content-Type提示。
func (t *TikaExtractor) ExtractText(ctx context.Context, data []byte, ext string) (string, error) {
	contentType, ok := contentTypeByExt[strings.ToLower(ext)]
	if !ok {
		return "", apperr.NewUnsupportedFormatError("", fmt.Sprintf("Tika不支持的扩展名: %s", ext))
	}

	url := fmt.Sprintf("%s/tika", t.serverURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建Tika请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain")

	startTime := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperr.NewExtractionError("", fmt.Sprintf("请求Tika服务器失败: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperr.NewExtractionError("",
			fmt.Sprintf("Tika返回状态码 %d: %s", resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", apperr.NewExtractionError("", "Tika未能从文档中提取出文本")
	}

	t.logger.Printf("Tika提取完成: %d 字符 (用时 %.2f秒)", len(text), time.Since(startTime).Seconds())
	return text, nil
}
