package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// AuthConfig 用于配置身份认证。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // JWT 签名密钥 (本地验证模式)
	Audience  string `yaml:"audience"`  // 期望的 JWT audience
	KeyURL    string `yaml:"keyURL"`    // 远程验证密钥地址 (为空则使用 jwtSecret)
	KeyTTL    int    `yaml:"keyTTL"`    // 远程密钥缓存有效期（秒）
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// OpenAIConfig 包含 OpenAI 兼容接口的配置。
// BaseURL 为空时使用官方地址；指向 Groq 等兼容服务时填写其地址。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务地址
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"` // Gemini API 密钥
	Model  string `yaml:"model"`  // Gemini 模型名称
}

// OllamaConfig 包含了本地 Ollama 服务的配置。
type OllamaConfig struct {
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务地址 (默认 http://localhost:11434)
}

// STTConfig 包含语音转写服务的配置。
type STTConfig struct {
	Provider string       `yaml:"provider"` // 转写提供商 (目前支持: "groq")
	Groq     OpenAIConfig `yaml:"groq"`     // Groq Whisper 配置
	Language string       `yaml:"language"` // 语言提示 (例如: "ko")
}

// StructureConfig 包含结构化服务的配置。
type StructureConfig struct {
	Provider string       `yaml:"provider"` // 提供商 (例如: "openai", "gemini", "ollama")
	OpenAI   OpenAIConfig `yaml:"openai"`
	Gemini   GeminiConfig `yaml:"gemini"`
	Ollama   OllamaConfig `yaml:"ollama"`
}

// EmbeddingConfig 包含了不同 Embedding 提供商的配置。
// Dimension 必须与向量集合的维度一致，索引与检索共用同一配置。
type EmbeddingConfig struct {
	Provider  string       `yaml:"provider"`  // Embedding 提供商 (例如: "openai", "gemini", "ollama")
	Dimension int          `yaml:"dimension"` // 向量维度
	OpenAI    OpenAIConfig `yaml:"openai"`
	Gemini    GeminiConfig `yaml:"gemini"`
	Ollama    OllamaConfig `yaml:"ollama"`
}

// CompletionConfig 包含了问答补全模型的配置。
type CompletionConfig struct {
	Provider string       `yaml:"provider"` // 提供商 (例如: "openai", "gemini", "ollama")
	OpenAI   OpenAIConfig `yaml:"openai"`
	Gemini   GeminiConfig `yaml:"gemini"`
	Ollama   OllamaConfig `yaml:"ollama"`
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 音频存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// MilvusConfig 定义了 Milvus 向量数据库的配置。
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus 服务地址
	Collection string `yaml:"collection"` // 向量集合名称
}

// KafkaConfig 定义了上传事件消费的 Kafka 配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"` // 是否启用 Kafka 摄取
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // 上传事件主题
	GroupID string   `yaml:"groupID"` // 消费者组
}

// DatabaseConfigs 包含所有外部存储的配置。
type DatabaseConfigs struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	MinIO  MinIOConfig  `yaml:"minio"`
	Milvus MilvusConfig `yaml:"milvus"`
	Kafka  KafkaConfig  `yaml:"kafka"`
}

// StepPolicyConfig 定义了单个流水线步骤的重试/超时策略。
type StepPolicyConfig struct {
	MaxAttempts int    `yaml:"maxAttempts"` // 最大尝试次数
	Delay       string `yaml:"delay"`       // 基础退避间隔 (例如: "2s")
	Backoff     string `yaml:"backoff"`     // 退避策略: "exponential", "linear", "constant"
	Timeout     string `yaml:"timeout"`     // 单次尝试超时 (例如: "5m")
}

// PipelineConfig 定义了备忘录处理流水线的配置。
type PipelineConfig struct {
	RetainAudio bool                        `yaml:"retainAudio"` // 处理完成后是否保留音频 (保留用于回放)
	Steps       map[string]StepPolicyConfig `yaml:"steps"`       // 按步骤名覆盖默认策略
}

// RAGConfig 定义了问答检索的配置。
type RAGConfig struct {
	TopK int `yaml:"topK"` // 近邻检索数量
}

// UploadConfig 定义了音频上传限制。
type UploadConfig struct {
	MaxSizeMB int `yaml:"maxSizeMB"` // 单文件大小上限 (MB)
}

// RateLimiterConfig 定义了限流器的配置 (令牌桶)。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Auth       AuthConfig       `yaml:"auth"`
	Logger     LoggerConfig     `yaml:"logger"`
	STT        STTConfig        `yaml:"stt"`
	Structure  StructureConfig  `yaml:"structure"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	RAG        RAGConfig        `yaml:"rag"`
	Upload     UploadConfig     `yaml:"upload"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// ParseDuration 解析策略配置中的时间字符串，为空时返回给定的默认值。
func ParseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("无效的时间配置 '%s': %w", s, err)
	}
	return d, nil
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	return &cfg, nil
}
