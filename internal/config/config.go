package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合客户端与开发服务器的配置项。
type Config struct {
	Client ClientConfig
	Server ServerConfig
	AI     AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Client: client,
		Server: server,
		AI:     loadAIConfig(),
	}, nil
}

// ClientConfig 描述访问简历服务所需的客户端配置。
type ClientConfig struct {
	BaseURL      string
	TimeoutSecs  int
	StateFile    string
	AutosaveSecs int
	Verbose      bool
}

// ServerConfig 描述开发用 mock 服务器的监听配置。
type ServerConfig struct {
	Addr string
}

func loadClientConfig() (ClientConfig, error) {
	timeout := 30
	if override, err := parseOptionalIntEnv("RESUME_API_TIMEOUT"); err != nil {
		return ClientConfig{}, err
	} else if override != nil {
		timeout = *override
	}

	autosave := 5
	if override, err := parseOptionalIntEnv("RESUME_AUTOSAVE_SECS"); err != nil {
		return ClientConfig{}, err
	} else if override != nil && *override > 0 {
		autosave = *override
	}

	verbose, err := parseBoolEnv("RESUME_VERBOSE", false)
	if err != nil {
		return ClientConfig{}, err
	}

	stateFile := strings.TrimSpace(os.Getenv("RESUME_STATE_FILE"))
	if stateFile == "" {
		stateFile, err = defaultStateFile()
		if err != nil {
			return ClientConfig{}, err
		}
	}

	return ClientConfig{
		BaseURL:      ResolveBaseURL(os.Getenv("RESUME_API_URL"), os.Getenv("RESUME_PUBLIC_HOST")),
		TimeoutSecs:  timeout,
		StateFile:    stateFile,
		AutosaveSecs: autosave,
		Verbose:      verbose,
	}, nil
}

// ResolveBaseURL 解析 API 地址：显式覆盖优先，其次按访问域名推断（支持花生壳内网穿透），
// 最后回退到本地开发默认值。
func ResolveBaseURL(override, publicHost string) string {
	if url := strings.TrimSpace(override); url != "" {
		return strings.TrimRight(url, "/")
	}

	host := strings.TrimSpace(publicHost)
	if strings.Contains(host, "vicp.fun") {
		return "http://23928mq418.vicp.fun:36218"
	}

	return "http://localhost:8080"
}

func defaultStateFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "resumepilot", "session.yaml"), nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述 mock 服务器可选的大模型配置。
type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Region  string
}

// Enabled 表示是否提供了必需的模型凭证。
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，需要 ARK_API_KEY 和 ARK_MODEL")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: c.BaseURL,
		Region:  c.Region,
		APIKey:  c.APIKey,
		Model:   c.Model,
	})
}

func loadAIConfig() AIConfig {
	return AIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		Model:   strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL: getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:  getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}
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
