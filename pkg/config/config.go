package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Bot      BotConfig      `mapstructure:"bot"`
}

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	VerifyToken string `mapstructure:"verify_token"`
	AdminToken  string `mapstructure:"admin_token"`
}

type GatewayConfig struct {
	// Channel selects the outbound adapter: "http" or "telegram".
	Channel       string `mapstructure:"channel"`
	BaseURL       string `mapstructure:"base_url"`
	Token         string `mapstructure:"token"`
	TelegramToken string `mapstructure:"telegram_token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey             string  `mapstructure:"api_key"`
	Model              string  `mapstructure:"model"`
	TranscriptionModel string  `mapstructure:"transcription_model"`
	ModerationModel    string  `mapstructure:"moderation_model"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature"`
}

type BotConfig struct {
	ResetKeyword       string `mapstructure:"reset_keyword"`
	ModerateReplies    bool   `mapstructure:"moderate_replies"`
	FailOpenModeration bool   `mapstructure:"fail_open_moderation"`
	ResetAckText       string `mapstructure:"reset_ack_text"`
	RejectionText      string `mapstructure:"rejection_text"`
	FailureText        string `mapstructure:"failure_text"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.address", ":8080")
	v.SetDefault("gateway.channel", "http")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("bot.reset_keyword", "clear")
	v.SetDefault("bot.moderate_replies", false)
	v.SetDefault("bot.fail_open_moderation", true)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("GATEWAY_TOKEN"); token != "" {
		config.Gateway.Token = token
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Gateway.TelegramToken = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
