package constants

// Redis键定义
const (
	// UploadFileMD5SetKey 已摄取文件MD5集合，用于上传去重
	UploadFileMD5SetKey = "ingest:file_md5s"

	// InterviewSessionKeyPrefix 面试会话状态的键前缀
	InterviewSessionKeyPrefix = "interview:session:"
)
