package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/types"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFExtractor 使用 Eino PDF Parser 提取文本，每页产出一个来源单元
type EinoPDFExtractor struct {
	parser *pdf.PDFParser
	logger *log.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFExtractor)

// WithPDFLogger 配置自定义日志记录器
func WithPDFLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.logger = logger
	}
}

// NewEinoPDFExtractor 初始化 Eino PDF 文本提取器。
// 按页分割，每页对应一个来源单元，页码记入来源信息。
func NewEinoPDFExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFExtractor{
		parser: p,
		logger: log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractUnits 从PDF内容中提取来源单元，每页一个
func (e *EinoPDFExtractor) ExtractUnits(ctx context.Context, reader io.Reader, sourceName string) ([]types.SourceUnit, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(sourceName),
	)
	if err != nil {
		e.logger.Printf("PDF解析失败: %s (用时 %.2f秒)", err, time.Since(startTime).Seconds())
		return nil, apperr.NewExtractionError("", fmt.Sprintf("解析PDF %s 失败: %v", sourceName, err))
	}
	if len(docs) == 0 {
		return nil, apperr.NewExtractionError("", fmt.Sprintf("PDF %s 没有可提取的内容", sourceName))
	}

	units := make([]types.SourceUnit, 0, len(docs))
	for i, doc := range docs {
		if doc.Content == "" {
			continue
		}
		units = append(units, types.SourceUnit{
			Text:        doc.Content,
			ContentType: types.ContentTypeProse,
			Provenance: types.Provenance{
				Source: "pdf",
				Path:   sourceName,
				Page:   i + 1,
			},
		})
	}
	if len(units) == 0 {
		return nil, apperr.NewExtractionError("", fmt.Sprintf("PDF %s 所有页面均为空", sourceName))
	}

	e.logger.Printf("PDF提取完成: %d 页 (用时 %.2f秒)", len(units), time.Since(startTime).Seconds())
	return units, nil
}

// ExtractFullText 提取整个PDF的连续文本，简历摄取使用
func (e *EinoPDFExtractor) ExtractFullText(ctx context.Context, data []byte, sourceName string) (string, error) {
	units, err := e.ExtractUnits(ctx, bytes.NewReader(data), sourceName)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for i, u := range units {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(u.Text)
	}
	return buf.String(), nil
}
