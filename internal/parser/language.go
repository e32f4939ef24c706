package parser

import (
	"path/filepath"
	"strings"

	"ai-interview-go/internal/types"
)

// extContentType 扩展名到内容类型标签的闭集映射。
// 提取阶段确定一次，分块器按标签选择切分策略。
var extContentType = map[string]types.ContentType{
	".py": types.ContentTypePython,

	".js":  types.ContentTypeJS,
	".jsx": types.ContentTypeJS,
	".ts":  types.ContentTypeJS,
	".tsx": types.ContentTypeJS,

	".go": types.ContentTypeGo,

	".md":       types.ContentTypeMarkdown,
	".markdown": types.ContentTypeMarkdown,

	".txt":  types.ContentTypeGeneric,
	".json": types.ContentTypeGeneric,
	".yml":  types.ContentTypeGeneric,
	".yaml": types.ContentTypeGeneric,
	".toml": types.ContentTypeGeneric,
	".html": types.ContentTypeGeneric,
	".css":  types.ContentTypeGeneric,
	".xml":  types.ContentTypeGeneric,
	".sql":  types.ContentTypeGeneric,
	".sh":   types.ContentTypeGeneric,
	".rst":  types.ContentTypeGeneric,
	".java": types.ContentTypeGeneric,
	".c":    types.ContentTypeGeneric,
	".h":    types.ContentTypeGeneric,
	".cpp":  types.ContentTypeGeneric,
	".rs":   types.ContentTypeGeneric,
	".rb":   types.ContentTypeGeneric,
	".mod":  types.ContentTypeGeneric,
}

// DetectContentType 根据文件路径判断内容类型。
// 第二个返回值为false表示不是可处理的文本文件，应跳过。
func DetectContentType(path string) (types.ContentType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extContentType[ext]; ok {
		return ct, true
	}
	// 无扩展名的常见文本文件
	base := strings.ToLower(filepath.Base(path))
	switch base {
	case "readme", "license", "dockerfile", "makefile":
		return types.ContentTypeGeneric, true
	}
	return "", false
}

// separatorSets 各内容类型的切分分隔符，按优先级从粗到细。
// 代码类标签优先在函数/类边界切分，而不是任意字符位置。
var separatorSets = map[types.ContentType][]string{
	types.ContentTypeProse: {
		"\n\n", "\n", "。", ". ", " ", "",
	},
	types.ContentTypeMarkdown: {
		"\n## ", "\n### ", "\n#### ", "\n\n", "\n", " ", "",
	},
	types.ContentTypePython: {
		"\nclass ", "\ndef ", "\n\tdef ", "\n    def ", "\n\n", "\n", " ", "",
	},
	types.ContentTypeJS: {
		"\nfunction ", "\nclass ", "\nexport ", "\nconst ", "\nlet ", "\n\n", "\n", " ", "",
	},
	types.ContentTypeGo: {
		"\nfunc ", "\ntype ", "\nvar ", "\nconst ", "\n\n", "\n", " ", "",
	},
	types.ContentTypeGeneric: {
		"\n\n", "\n", " ", "",
	},
}

// separatorsFor 返回内容类型对应的分隔符集，未知类型退回通用集
func separatorsFor(ct types.ContentType) []string {
	if seps, ok := separatorSets[ct]; ok {
		return seps
	}
	return separatorSets[types.ContentTypeGeneric]
}
