package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"Arya-Agent/internal/auth"
	"Arya-Agent/pkg/logger"
)

// DefaultPath 是未设置 ARYA_CONFIG 时读取的配置文件。
var DefaultPath = filepath.Join("configs", "arya.json")

// Config 描述了 Arya 在启动阶段需要加载的全部配置。
//
// 文件提供结构化配置，密钥类字段可以由带 env 标签的环境变量覆盖。
type Config struct {
	Server      ServerConfig      `json:"server"`
	Logging     logger.Config     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Queue       QueueConfig       `json:"queue"`
	LLM         LLMConfig         `json:"llm"`
	Starknet    StarknetConfig    `json:"starknet"`
	Exchange    ExchangeConfig    `json:"exchange"`
	Media       MediaConfig       `json:"media"`
	NameService NameServiceConfig `json:"name_service"`
	Alerting    AlertingConfig    `json:"alerting"`
	Runtime     RuntimeConfig     `json:"runtime"`
}

// ServerConfig 控制 API 服务。
type ServerConfig struct {
	Address     string     `json:"address" env:"ARYA_SERVER_ADDRESS"`
	APIKeys     []auth.Key `json:"api_keys"`
	APIKey      string     `json:"-" env:"ARYA_API_KEY"`
	WaitTimeout Duration   `json:"wait_timeout"`
	// MetricsAddress 非空时额外在该地址单独暴露 /metrics，API 端口上的 /metrics 保持可用。
	MetricsAddress string `json:"metrics_address" env:"ARYA_METRICS_ADDRESS"`
}

// Keys 合并文件中的密钥与环境变量提供的密钥。
func (s ServerConfig) Keys() []auth.Key {
	keys := append([]auth.Key(nil), s.APIKeys...)
	if s.APIKey != "" {
		keys = append(keys, auth.Key{Name: "env", Value: s.APIKey})
	}
	return keys
}

// StorageConfig 描述作业存储。
type StorageConfig struct {
	JobStore JobStoreConfig `json:"job_store"`
}

// JobStoreConfig 选择 memory 或 mysql 存储。
type JobStoreConfig struct {
	Driver          string   `json:"driver" env:"ARYA_JOB_STORE"`
	DSN             string   `json:"dsn" env:"ARYA_MYSQL_DSN"`
	MaxOpenConns    int      `json:"max_open_conns"`
	MaxIdleConns    int      `json:"max_idle_conns"`
	ConnMaxLifetime Duration `json:"conn_max_lifetime"`
}

// QueueConfig 选择 memory、redis 或 rabbitmq 队列。
type QueueConfig struct {
	Driver   string         `json:"driver" env:"ARYA_QUEUE"`
	Size     int            `json:"size"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列。
type RedisConfig struct {
	Address   string   `json:"address" env:"ARYA_REDIS_ADDR"`
	Password  string   `json:"password" env:"ARYA_REDIS_PASSWORD"`
	DB        int      `json:"db"`
	Queue     string   `json:"queue"`
	BlockWait Duration `json:"block_wait"`
}

// RabbitMQConfig 描述 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL      string `json:"url" env:"ARYA_RABBITMQ_URL"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
	Durable  bool   `json:"durable"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string             `json:"provider" env:"ARYA_LLM_PROVIDER"`
	Timeout  Duration           `json:"timeout"`
	OpenAI   OpenAIConfig       `json:"openai"`
	Python   PythonBridgeConfig `json:"python_bridge"`
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	APIKey    string `json:"api_key" env:"ARYA_OPENAI_API_KEY"`
	BaseURL   string `json:"base_url" env:"ARYA_OPENAI_BASE_URL"`
	Model     string `json:"model" env:"ARYA_OPENAI_MODEL"`
	MaxTokens int    `json:"max_tokens"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `json:"python_executable"`
	ScriptPath       string `json:"script_path"`
	WorkingDir       string `json:"working_dir"`
}

// StarknetConfig 描述链上读取与远程签名服务。
type StarknetConfig struct {
	RPCURL         string   `json:"rpc_url" env:"ARYA_STARKNET_RPC_URL"`
	AccountAddress string   `json:"account_address" env:"ARYA_STARKNET_ACCOUNT_ADDRESS"`
	SignerURL      string   `json:"signer_url" env:"ARYA_SIGNER_URL"`
	SignerAPIKey   string   `json:"signer_api_key" env:"ARYA_SIGNER_API_KEY"`
	PollInterval   Duration `json:"poll_interval"`
	ReceiptTimeout Duration `json:"receipt_timeout"`
}

// Enabled 判断是否配置了执行兑换所需的链上账户。
func (s StarknetConfig) Enabled() bool {
	return s.RPCURL != "" && s.AccountAddress != "" && s.SignerURL != ""
}

// ExchangeConfig 描述 AVNU 聚合器与兑换默认参数。
type ExchangeConfig struct {
	BaseURL     string   `json:"base_url"`
	ImpulseURL  string   `json:"impulse_url"`
	Timeout     Duration `json:"timeout"`
	Slippage    *float64 `json:"slippage"`
	AutoApprove *bool    `json:"auto_approve"`
	AddressBook string   `json:"address_book"`
}

// MediaConfig 描述 Twitch 与 YouTube 凭据。
type MediaConfig struct {
	Timeout Duration      `json:"timeout"`
	Twitch  TwitchConfig  `json:"twitch"`
	YouTube YouTubeConfig `json:"youtube"`
}

// TwitchConfig 描述 Twitch Helix 凭据。
type TwitchConfig struct {
	ClientID     string `json:"client_id" env:"ARYA_TWITCH_CLIENT_ID"`
	ClientSecret string `json:"client_secret" env:"ARYA_TWITCH_CLIENT_SECRET"`
	AccessToken  string `json:"access_token" env:"ARYA_TWITCH_ACCESS_TOKEN"`
}

// Enabled 判断 Twitch 查询是否可用。
func (t TwitchConfig) Enabled() bool {
	return t.ClientID != "" && (t.AccessToken != "" || t.ClientSecret != "")
}

// YouTubeConfig 描述 YouTube Data API 凭据。
type YouTubeConfig struct {
	APIKey string `json:"api_key" env:"ARYA_YOUTUBE_API_KEY"`
}

// NameServiceConfig 描述 starknet.id 解析服务。
type NameServiceConfig struct {
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
}

// AlertingConfig 描述告警渠道。
type AlertingConfig struct {
	WebhookURL   string `json:"webhook_url" env:"ARYA_ALERT_WEBHOOK_URL"`
	WebhookToken string `json:"webhook_token" env:"ARYA_ALERT_WEBHOOK_TOKEN"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir    string   `json:"data_dir"`
	Workers    int      `json:"workers" env:"ARYA_WORKERS"`
	JobTimeout Duration `json:"job_timeout"`
}

// Load 解析指定路径的 JSON 配置文件，叠加环境变量并填充默认值。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return finish(&cfg, filepath.Dir(path))
}

// LoadOrDefault 在配置文件不存在时只使用环境变量与默认值。
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return finish(&Config{}, ".")
	}
	return Load(path)
}

func finish(cfg *Config, baseDir string) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.WaitTimeout <= 0 {
		c.Server.WaitTimeout = Duration(60 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Storage.JobStore.Driver == "" {
		c.Storage.JobStore.Driver = "memory"
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 1024
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = Duration(30 * time.Second)
	}
	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	c.LLM.Python.WorkingDir = resolve(baseDir, c.LLM.Python.WorkingDir, baseDir)

	if c.Exchange.Slippage == nil {
		slippage := 0.05
		c.Exchange.Slippage = &slippage
	}
	if c.Exchange.AutoApprove == nil {
		approve := true
		c.Exchange.AutoApprove = &approve
	}
	if c.Exchange.AddressBook != "" {
		c.Exchange.AddressBook = resolve(baseDir, c.Exchange.AddressBook, "")
	}

	if c.Runtime.Workers <= 0 {
		c.Runtime.Workers = 4
	}
	if c.Runtime.JobTimeout <= 0 {
		c.Runtime.JobTimeout = Duration(5 * time.Minute)
	}
	c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir, filepath.Join(baseDir, "data"))
}

// Validate 检查驱动名称与取值范围。
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.JobStore.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.JobStore.DSN) == "" {
			errs = append(errs, errors.New("mysql 作业存储需要 dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知的作业存储驱动: %s", c.Storage.JobStore.Driver))
	}
	switch c.Queue.Driver {
	case "memory":
	case "redis":
		if c.Queue.Redis.Address == "" {
			errs = append(errs, errors.New("redis 队列需要 address"))
		}
	case "rabbitmq":
		if c.Queue.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("rabbitmq 队列需要 url"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知的队列驱动: %s", c.Queue.Driver))
	}
	switch c.LLM.Provider {
	case "openai", "python_bridge":
	default:
		errs = append(errs, fmt.Errorf("未知的大模型提供方: %s", c.LLM.Provider))
	}
	if s := *c.Exchange.Slippage; s < 0 || s >= 1 {
		errs = append(errs, fmt.Errorf("slippage 必须位于 [0, 1): %v", s))
	}
	return errors.Join(errs...)
}

func resolve(baseDir, value, fallback string) string {
	if value == "" {
		return fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}

// Duration 以 "30s"、"2m" 形式出现在配置文件与环境变量中。
type Duration time.Duration

// Std 返回标准库时长。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText 同时服务于 JSON 字符串与环境变量。
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("无效的时长 %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText 输出 time.Duration 的字符串形式。
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
