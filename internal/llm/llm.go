package llm

import "context"

// Format 指定期望的大模型输出格式。
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Request 描述一次发送给大模型的推理请求。
type Request struct {
	// Instructions 是系统提示词，包含模板、字段说明与示例。
	Instructions string
	// Input 是用户最新消息及其上下文。
	Input  string
	Format Format
}

// Response 是大模型返回的原始文本。
type Response struct {
	Content string
	Model   string
}

// Client 定义了调用大模型的统一接口。实现不得在内部重试，
// 调用方对每条消息最多请求一次。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
