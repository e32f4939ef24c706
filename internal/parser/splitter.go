package parser

import (
	"fmt"
	"strings"

	"ai-interview-go/internal/types"
)

// SplitterConfig 分块器配置，大小与重叠都是可调参数
type SplitterConfig struct {
	ChunkSize    int // 分块最大长度（按rune计）
	ChunkOverlap int // 同一来源单元内相邻分块的重叠长度
}

// Splitter 递归分隔符文本分块器。
// 按内容类型选择分隔符集，从粗（段落/函数边界）到细（句子/字符）逐级切分，
// 保证每个分块不超过ChunkSize，相邻分块保留ChunkOverlap的重叠。
type Splitter struct {
	config SplitterConfig
}

// NewSplitter 创建分块器
func NewSplitter(config SplitterConfig) (*Splitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("分块大小必须为正数: %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("重叠长度必须在 [0, 分块大小) 内: %d", config.ChunkOverlap)
	}
	return &Splitter{config: config}, nil
}

// Split 将来源单元切分为有界分块，保持原始顺序并继承来源信息
func (s *Splitter) Split(units []types.SourceUnit) []types.Chunk {
	var chunks []types.Chunk
	seq := 0
	for _, unit := range units {
		text := strings.TrimSpace(unit.Text)
		if text == "" {
			continue
		}
		pieces := s.splitText(text, separatorsFor(unit.ContentType))
		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, types.Chunk{
				Text:       piece,
				Seq:        seq,
				Provenance: unit.Provenance,
			})
			seq++
		}
	}
	return chunks
}

// splitText 递归切分单段文本
func (s *Splitter) splitText(text string, separators []string) []string {
	if len([]rune(text)) <= s.config.ChunkSize {
		return []string{text}
	}

	// 找到第一个在文本中出现的分隔符
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			remaining = nil
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		// 没有可用分隔符，按字符硬切
		splits = hardSplit(text, s.config.ChunkSize)
	} else {
		for _, part := range strings.Split(text, separator) {
			if part == "" {
				continue
			}
			if len([]rune(part)) > s.config.ChunkSize {
				// 片段仍然过大，用更细的分隔符递归
				splits = append(splits, s.splitText(part, remaining)...)
			} else {
				splits = append(splits, part)
			}
		}
	}

	return s.mergeSplits(splits, separator)
}

// mergeSplits 将细碎片段贪心合并为不超过ChunkSize的分块，
// 并在相邻分块之间保留ChunkOverlap的尾部重叠。
func (s *Splitter) mergeSplits(splits []string, separator string) []string {
	sepLen := len([]rune(separator))

	var merged []string
	var window []string
	windowLen := 0
	fresh := false // 窗口中是否有上次输出后新加入的片段

	for _, split := range splits {
		splitLen := len([]rune(split))
		if windowLen+splitLen+sepLen > s.config.ChunkSize && windowLen > 0 {
			// 只输出含新内容的窗口，纯重叠尾巴不重复成块
			if fresh {
				merged = append(merged, strings.Join(window, separator))
				fresh = false
			}
			// 从窗口头部弹出：先压回重叠预算内，
			// 再保证加入当前片段后仍不超过分块上限
			for len(window) > 0 && (windowLen > s.config.ChunkOverlap ||
				windowLen+splitLen+sepLen > s.config.ChunkSize) {
				windowLen -= len([]rune(window[0])) + sepLen
				window = window[1:]
			}
		}
		window = append(window, split)
		windowLen += splitLen + sepLen
		fresh = true
	}
	if fresh && len(window) > 0 {
		merged = append(merged, strings.Join(window, separator))
	}
	return merged
}

// hardSplit 按rune硬切，保底路径
func hardSplit(text string, size int) []string {
	runes := []rune(text)
	var parts []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
