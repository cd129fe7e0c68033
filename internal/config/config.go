package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Search  SearchConfig
	Convert ConvertConfig
	Access  AccessConfig
	Profile ProfileConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	convert, err := loadConvertConfig()
	if err != nil {
		return nil, err
	}

	profile, err := loadProfileConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Search:  search,
		Convert: convert,
		Access:  loadAccessConfig(),
		Profile: profile,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8501"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8501" 或 "127.0.0.1:8501"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Provider 选择推理后端。
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderArk    Provider = "ark"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider       Provider
	StreamResponse bool

	OllamaBaseURL   string
	OllamaModel     string
	OllamaTimeout   time.Duration
	OllamaKeepAlive *time.Duration

	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ModelName 返回当前后端使用的模型标识。
func (c AIConfig) ModelName() string {
	if c.Provider == ProviderArk {
		return c.Model
	}
	return c.OllamaModel
}

// Enabled 表示是否提供了创建模型所需的最少配置。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.OllamaModel != "" && c.OllamaBaseURL != ""
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 模型配置缺失", c.Provider)
	}

	if c.Provider == ProviderArk {
		return c.newArkChatModel(ctx)
	}

	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL:   c.OllamaBaseURL,
		Model:     c.OllamaModel,
		Timeout:   c.OllamaTimeout,
		KeepAlive: c.OllamaKeepAlive,
	})
}

func (c AIConfig) newArkChatModel(ctx context.Context) (model.BaseChatModel, error) {
	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := Provider(strings.ToLower(getEnvOrDefault("LLM_PROVIDER", string(ProviderOllama))))
	if provider != ProviderOllama && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	stream, err := parseBoolEnv("LLM_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseOptionalDurationEnv("OLLAMA_TIMEOUT")
	if err != nil {
		return AIConfig{}, err
	}
	var ollamaTimeout time.Duration
	if timeout != nil {
		ollamaTimeout = *timeout
	}

	keepAlive, err := parseOptionalDurationEnv("OLLAMA_KEEP_ALIVE")
	if err != nil {
		return AIConfig{}, err
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:        provider,
		StreamResponse:  stream,
		OllamaBaseURL:   getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:     getEnvOrDefault("OLLAMA_MODEL", "mistral-nemo"),
		OllamaTimeout:   ollamaTimeout,
		OllamaKeepAlive: keepAlive,
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		TopP:            topP,
		MaxTokens:       maxTokens,
	}, nil
}

// SearchConfig 描述联网检索配置。
type SearchConfig struct {
	Enabled    bool
	MaxResults int
	Timeout    time.Duration
}

func loadSearchConfig() (SearchConfig, error) {
	enabled, err := parseBoolEnv("SEARCH_ENABLED", true)
	if err != nil {
		return SearchConfig{}, err
	}

	maxResults := 0
	if override, err := parseOptionalIntEnv("SEARCH_MAX_RESULTS"); err != nil {
		return SearchConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return SearchConfig{}, fmt.Errorf("invalid SEARCH_MAX_RESULTS value %d", *override)
		}
		maxResults = *override
	}

	timeout, err := parseOptionalDurationEnv("SEARCH_TIMEOUT")
	if err != nil {
		return SearchConfig{}, err
	}
	var searchTimeout time.Duration
	if timeout != nil {
		searchTimeout = *timeout
	}

	return SearchConfig{
		Enabled:    enabled,
		MaxResults: maxResults,
		Timeout:    searchTimeout,
	}, nil
}

// ConvertConfig 描述简繁转换配置。
type ConvertConfig struct {
	// OpenCC 配置名，例如 s2twp；"none" 表示不转换。
	Scheme string
	// HoldRunes 为无断点时最多暂存的字符数。
	HoldRunes int
}

func loadConvertConfig() (ConvertConfig, error) {
	hold := 32
	if override, err := parseOptionalIntEnv("CONVERT_HOLD"); err != nil {
		return ConvertConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ConvertConfig{}, fmt.Errorf("invalid CONVERT_HOLD value %d", *override)
		}
		hold = *override
	}

	return ConvertConfig{
		Scheme:    strings.ToLower(getEnvOrDefault("OPENCC_CONFIG", "s2twp")),
		HoldRunes: hold,
	}, nil
}

// AccessConfig 描述访问口令。
type AccessConfig struct {
	Key string
}

func loadAccessConfig() AccessConfig {
	// 不做 TrimSpace，口令按字面比较。
	key, ok := os.LookupEnv("ACCESS_KEY")
	if !ok || key == "" {
		key = "12345"
	}
	return AccessConfig{Key: key}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
