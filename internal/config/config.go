// Package config 提供配置加载和管理功能
package config

import (
	"sort"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Classifier    ClassifierConfig    `yaml:"classifier" mapstructure:"classifier"`
	Autopilot     AutopilotConfig     `yaml:"autopilot" mapstructure:"autopilot"`
	Media         MediaConfig         `yaml:"media" mapstructure:"media"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// Enabled 关闭时限流与媒体存储退化为进程内实现
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultModel   string                    `yaml:"default_model" mapstructure:"default_model"`
	RequestTimeout time.Duration             `yaml:"request_timeout" mapstructure:"request_timeout"`
	StreamTimeout  time.Duration             `yaml:"stream_timeout" mapstructure:"stream_timeout"`
	Retry          RetryConfig               `yaml:"retry" mapstructure:"retry"`
	Providers      map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	// Kind 取值 gemini / openai（任何 OpenAI 兼容端点）
	Kind    string   `yaml:"kind" mapstructure:"kind"`
	APIKey  string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Models  []string `yaml:"models" mapstructure:"models"`
}

// RetryConfig 上游瞬时错误的退避配置
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Initial     time.Duration `yaml:"initial" mapstructure:"initial"`
	Max         time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// AllowedModels 返回所有提供商声明的模型，按名称排序
func (c LLMConfig) AllowedModels() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.Providers {
		for _, m := range p.Models {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// ClassifierConfig 提示分类配置
type ClassifierConfig struct {
	MobileThreshold int `yaml:"mobile_threshold" mapstructure:"mobile_threshold"`
}

// AutopilotConfig 自动质检循环配置
type AutopilotConfig struct {
	MaxIterations    int           `yaml:"max_iterations" mapstructure:"max_iterations"`
	QualityThreshold int           `yaml:"quality_threshold" mapstructure:"quality_threshold"`
	AutoApply        bool          `yaml:"auto_apply" mapstructure:"auto_apply"`
	Delay            time.Duration `yaml:"delay" mapstructure:"delay"`
	CritiqueModel    string        `yaml:"critique_model" mapstructure:"critique_model"`
	// MaxSessions 同时保留的会话数上限
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
	// SessionRetention 结束后的会话保留多久可供查询
	SessionRetention time.Duration `yaml:"session_retention" mapstructure:"session_retention"`
}

// MediaConfig 媒体占位符存储配置
type MediaConfig struct {
	MaxEntries      int           `yaml:"max_entries" mapstructure:"max_entries"`
	MaxBytes        int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	MaxAge          time.Duration `yaml:"max_age" mapstructure:"max_age"`
	MinPayloadBytes int           `yaml:"min_payload_bytes" mapstructure:"min_payload_bytes"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit      RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	BodyLimitBytes int64           `yaml:"body_limit_bytes" mapstructure:"body_limit_bytes"`
	CORS           CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置：每个客户端在滚动窗口内的请求预算
type RateLimitConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Requests     int           `yaml:"requests" mapstructure:"requests"`
	Window       time.Duration `yaml:"window" mapstructure:"window"`
	ClientHeader string        `yaml:"client_header" mapstructure:"client_header"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
