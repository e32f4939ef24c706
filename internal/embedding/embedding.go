// Package embedding 提供文本向量化能力，统一实现eino的Embedder接口。
package embedding

import (
	"github.com/cloudwego/eino/components/embedding"
)

// Embedder 向量化接口，直接采用eino的定义。
// 本包的实现与索引层都以它为契约，调用方不必再引用eino包。
type Embedder = embedding.Embedder
