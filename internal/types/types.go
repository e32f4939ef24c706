package types

// ContentType 分块策略的内容类型标签，在提取阶段由扩展名确定一次
type ContentType string

const (
	ContentTypeProse    ContentType = "prose"
	ContentTypePython   ContentType = "python-source"
	ContentTypeJS       ContentType = "js-source"
	ContentTypeGo       ContentType = "go-source"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeGeneric  ContentType = "generic-text"
)

// Provenance 内容来源信息，随分块一路传递到向量索引
type Provenance struct {
	// Source 来源标识："resume"、"pdf"、"youtube"、仓库URL等
	Source string `json:"source"`
	// Path 仓库内相对路径或上传文件名
	Path string `json:"path,omitempty"`
	// Page 文档页码，从1开始；非文档来源为0
	Page int `json:"page,omitempty"`
	// URL 原始URL（视频、仓库）
	URL string `json:"url,omitempty"`
}

// SourceUnit 提取器产出的文本单元，立即被分块器消费，不单独持久化
type SourceUnit struct {
	Text        string      `json:"text"`
	ContentType ContentType `json:"content_type"`
	Provenance  Provenance  `json:"provenance"`
}

// Chunk 有界文本分块，向量索引的存储单元。创建后不可变。
type Chunk struct {
	Text       string     `json:"text"`
	Seq        int        `json:"seq"` // 分块在整个摄取流中的序号
	Provenance Provenance `json:"provenance"`
}

// RetrievedChunk 检索结果：分块及其相似度分数
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"` // 越大越相似
}

// IngestResult 一次摄取的结果
type IngestResult struct {
	SessionID  string `json:"session_id"`
	SourceName string `json:"source_name"`
	ChunkCount int    `json:"chunk_count"`
	// LinkedRepos 简历摄取时递归处理的GitHub仓库名
	LinkedRepos []string `json:"linked_repos,omitempty"`
	// ResumeText 简历摄取时的完整文本，供面试环节留存摘要
	ResumeText string `json:"resume_text,omitempty"`
}

// InterviewQuestion 模型必须返回的单个面试问题
type InterviewQuestion struct {
	Question string `json:"question" jsonschema:"一个直接提给候选人的面试问题"`
}

// TechnicalFeedback 技术能力反馈报告
type TechnicalFeedback struct {
	TechnicalKnowledgeRating int      `json:"technical_knowledge_rating" jsonschema:"技术能力评分，1到5"`
	TechnicalTips            []string `json:"technical_tips" jsonschema:"改进技术回答的可执行建议列表"`
}

// HRFeedback 沟通能力反馈报告
type HRFeedback struct {
	CommunicationSkillsRating int      `json:"communication_skills_rating" jsonschema:"沟通能力评分，1到5"`
	CommunicationTips         []string `json:"communication_tips" jsonschema:"改进沟通表达的可执行建议列表"`
}
