package transcribe

import "context"

// Transcriber 定义了语音转写服务的接口。
// 输入是一个转写服务可以直接下载的音频 URL (通常为签名后的对象存储地址)，
// 输出是原始转写文本。
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}
