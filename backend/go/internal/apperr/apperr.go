package apperr

import "errors"

// 核心错误分类。所有上层调用方通过 errors.Is 进行匹配，
// 包装时必须使用 %w 以保留原始错误信息。
var (
	// ErrInvalidInput 表示请求本身不合法 (例如音频引用无法解析)。
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound 表示流水线运行或备忘录不存在。
	ErrNotFound = errors.New("not found")

	// ErrExtractionFailed 表示无法从结构化模型的输出中提取出 JSON 对象。
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrMissingRequiredField 表示结构化输出缺少必填字段或分类不在闭集内。
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUpstreamService 表示某个外部服务调用在耗尽重试后仍然失败。
	ErrUpstreamService = errors.New("upstream service error")

	// ErrEmptyQuestion 表示问答请求的问题为空或仅含空白字符。
	ErrEmptyQuestion = errors.New("empty question")

	// ErrUnauthorized 表示身份断言缺失、无效或已过期。
	ErrUnauthorized = errors.New("unauthorized")
)
