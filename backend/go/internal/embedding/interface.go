package embedding

import "context"

// Embedding 定义了所有 embedding 模型需要实现的接口。
// 同一部署中所有实现返回的向量维度必须一致，并与向量索引的
// 集合维度匹配，否则写入时会被 Milvus 拒绝。
type Embedding interface {
	// Embed 为单个文本生成嵌入向量。
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 为一批文本生成嵌入向量，结果顺序与输入一致。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
