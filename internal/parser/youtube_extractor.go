package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"ai-interview-go/internal/apperr"
	"ai-interview-go/internal/types"
)

// YouTubeExtractor 拉取视频字幕，每个字幕块产出一个来源单元。
// 使用timedtext接口；没有可用字幕（私有视频、直播、未开启字幕）时返回提取失败。
type YouTubeExtractor struct {
	httpClient *http.Client
	baseURL    string   // timedtext接口地址，测试时可替换
	languages  []string // 按优先级尝试的字幕语言
	logger     *log.Logger
}

// YouTubeOption YouTube提取器的配置选项
type YouTubeOption func(*YouTubeExtractor)

// WithLanguages 设置字幕语言优先级
func WithLanguages(languages ...string) YouTubeOption {
	return func(y *YouTubeExtractor) {
		y.languages = languages
	}
}

// WithYouTubeHTTPClient 替换HTTP客户端
func WithYouTubeHTTPClient(client *http.Client) YouTubeOption {
	return func(y *YouTubeExtractor) {
		y.httpClient = client
	}
}

// WithTimedTextBaseURL 替换字幕接口地址，测试时指向本地服务
func WithTimedTextBaseURL(baseURL string) YouTubeOption {
	return func(y *YouTubeExtractor) {
		y.baseURL = baseURL
	}
}

// NewYouTubeExtractor 创建YouTube字幕提取器
func NewYouTubeExtractor(options ...YouTubeOption) *YouTubeExtractor {
	y := &YouTubeExtractor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://video.google.com/timedtext",
		languages:  []string{"en", "zh-Hans", "zh"},
		logger:     log.New(os.Stderr, "[YouTube] ", log.LstdFlags),
	}
	for _, option := range options {
		option(y)
	}
	return y
}

// videoIDPatterns 支持 watch?v=、youtu.be/、embed/ 三种URL形式
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})`),
}

// ParseVideoID 从视频URL解析视频ID
func ParseVideoID(videoURL string) (string, error) {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(videoURL); m != nil {
			return m[1], nil
		}
	}
	return "", apperr.NewUnsupportedFormatError("", fmt.Sprintf("无法从URL解析视频ID: %s", videoURL))
}

// timedtextTranscript timedtext接口的XML响应
type timedtextTranscript struct {
	XMLName xml.Name        `xml:"transcript"`
	Texts   []timedtextText `xml:"text"`
}

type timedtextText struct {
	Start   string `xml:"start,attr"`
	Dur     string `xml:"dur,attr"`
	Content string `xml:",chardata"`
}

// ExtractUnits 拉取字幕并转换为来源单元，每个字幕块一个
func (y *YouTubeExtractor) ExtractUnits(ctx context.Context, videoURL string) ([]types.SourceUnit, error) {
	videoID, err := ParseVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	var transcript *timedtextTranscript
	var lastErr error
	for _, lang := range y.languages {
		transcript, lastErr = y.fetchTranscript(ctx, videoID, lang)
		if lastErr == nil && transcript != nil && len(transcript.Texts) > 0 {
			break
		}
	}
	if transcript == nil || len(transcript.Texts) == 0 {
		detail := "无法获取该视频的字幕，视频可能是私有的、直播中或未开启字幕"
		if lastErr != nil {
			detail = fmt.Sprintf("%s: %v", detail, lastErr)
		}
		return nil, apperr.NewExtractionError("", detail)
	}

	units := make([]types.SourceUnit, 0, len(transcript.Texts))
	for _, t := range transcript.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Content))
		if text == "" {
			continue
		}
		units = append(units, types.SourceUnit{
			Text:        text,
			ContentType: types.ContentTypeProse,
			Provenance: types.Provenance{
				Source: "youtube",
				URL:    videoURL,
			},
		})
	}
	if len(units) == 0 {
		return nil, apperr.NewExtractionError("", "字幕内容为空")
	}

	y.logger.Printf("字幕提取完成: 视频 %s，%d 个字幕块", videoID, len(units))
	return units, nil
}

// fetchTranscript 请求单个语言的字幕
func (y *YouTubeExtractor) fetchTranscript(ctx context.Context, videoID, lang string) (*timedtextTranscript, error) {
	endpoint := fmt.Sprintf("%s?lang=%s&v=%s",
		y.baseURL, url.QueryEscape(lang), url.QueryEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建字幕请求失败: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求字幕接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("字幕接口返回状态码 %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取字幕响应失败: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		// 接口对无字幕视频返回空body而不是错误状态码
		return nil, fmt.Errorf("语言 %s 没有字幕", lang)
	}

	var transcript timedtextTranscript
	if err := xml.Unmarshal(body, &transcript); err != nil {
		return nil, fmt.Errorf("解析字幕XML失败: %w", err)
	}
	return &transcript, nil
}
