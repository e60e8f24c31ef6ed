// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Conf 是全局配置，由 Init 填充。
var Conf Config

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 SATYAM_LLM_API_KEY。
const EnvPrefix = "SATYAM"

// Config 与 config.yaml 的结构一一对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RAG           RAGConfig           `mapstructure:"rag"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 只用于校验外部签发的 token，本服务不负责签发。
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 控制对话记录的异步落库。Enabled 为 false 时同步写库。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储向量索引相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// Dimensions 必须与索引中 vector 字段的维度一致，更换模型需要重建索引。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。Provider 取值 openai 或 gemini，
// BaseURL 为空时使用对应服务商的官方地址。Temperature 为负数时不发送该参数，
// MaxTokens 为 0 时不限制。
type LLMConfig struct {
	Provider    string         `mapstructure:"provider"`
	APIKey      string         `mapstructure:"api_key"`
	BaseURL     string         `mapstructure:"base_url"`
	Model       string         `mapstructure:"model"`
	Temperature float64        `mapstructure:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	Retry       LLMRetryConfig `mapstructure:"retry"`
}

// LLMRetryConfig 控制限流重试：第 n 次重试前等待 BaseDelay*2^(n+1) 加 [0, MaxJitter) 的随机抖动。
type LLMRetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxJitter   time.Duration `mapstructure:"max_jitter"`
}

// CacheConfig 存储回答缓存的配置。Backend 取值 file、redis 或 minio。
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Backend    string        `mapstructure:"backend"`
	Path       string        `mapstructure:"path"`
	RedisKey   string        `mapstructure:"redis_key"`
	ObjectName string        `mapstructure:"object_name"`
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// RAGConfig 控制检索与生成流程。
type RAGConfig struct {
	TopK          int  `mapstructure:"top_k"`
	ContextLimit  int  `mapstructure:"context_limit"`
	HistoryWindow int  `mapstructure:"history_window"`
	RewriteWindow int  `mapstructure:"rewrite_window"`
	SingleFlight  bool `mapstructure:"single_flight"`
	LawFilter     bool `mapstructure:"law_filter"`
}

// AssistantConfig 存储问候与身份类问题的固定回答。
type AssistantConfig struct {
	GreetingAnswer string `mapstructure:"greeting_answer"`
	CreatorAnswer  string `mapstructure:"creator_answer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "satyam-chat-persist")
	v.SetDefault("kafka.group_id", "satyam-ai-go-consumer")

	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "legal-index")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "satyam-cache")

	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "http://localhost:8080/v1")
	v.SetDefault("embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("embedding.dimensions", 384)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.base_delay", time.Second)
	v.SetDefault("llm.retry.max_jitter", time.Second)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "response_cache.json")
	v.SetDefault("cache.redis_key", "satyam:response_cache")
	v.SetDefault("cache.object_name", "response_cache.json")
	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("cache.ttl", time.Duration(0))

	v.SetDefault("rag.top_k", 8)
	v.SetDefault("rag.context_limit", 3)
	v.SetDefault("rag.history_window", 6)
	v.SetDefault("rag.rewrite_window", 4)
	v.SetDefault("rag.single_flight", true)
	v.SetDefault("rag.law_filter", false)

	v.SetDefault("assistant.greeting_answer", "Namaste! I am Satyam AI, your Indian Legal Assistant. How can I help you with the law today?")
	v.SetDefault("assistant.creator_answer", "I was created by Atharv Munj.")
}

// Load 读取 YAML 配置文件并叠加默认值与环境变量。
// configPath 为空时只使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 加载配置到全局变量 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
