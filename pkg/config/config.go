package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Templates TemplatesConfig `json:"templates"`
	Render    RenderConfig    `json:"render"`
	QRCode    QRCodeConfig    `json:"qrcode"`
	Platforms PlatformsConfig `json:"platforms"`
	Delivery  DeliveryConfig  `json:"delivery"`
}

type ServerConfig struct {
	Host      string `json:"host" env:"RENDERBRIDGE_SERVER_HOST"`
	Port      int    `json:"port" env:"RENDERBRIDGE_SERVER_PORT"`
	APIPath   string `json:"api_path" env:"RENDERBRIDGE_SERVER_API_PATH"`
	AuthToken string `json:"auth_token" env:"RENDERBRIDGE_SERVER_AUTH_TOKEN"`
}

// InlineTemplate is a template declared directly in the config file instead
// of being scanned from the templates directory.
type InlineTemplate struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Width       int    `json:"width"`
	Quality     int    `json:"quality"`
}

type TemplatesConfig struct {
	Dir        string           `json:"dir" env:"RENDERBRIDGE_TEMPLATES_DIR"`
	Inline     []InlineTemplate `json:"inline"`
	ReloadCron string           `json:"reload_cron" env:"RENDERBRIDGE_TEMPLATES_RELOAD_CRON"`
}

type RenderConfig struct {
	APIURL              string   `json:"api_url" env:"RENDERBRIDGE_RENDER_API_URL"`
	APITimeoutSeconds   int      `json:"api_timeout_seconds" env:"RENDERBRIDGE_RENDER_API_TIMEOUT_SECONDS"`
	LocalCommand        string   `json:"local_command" env:"RENDERBRIDGE_RENDER_LOCAL_COMMAND"`
	LocalArgs           []string `json:"local_args" env:"RENDERBRIDGE_RENDER_LOCAL_ARGS"`
	LocalTimeoutSeconds int      `json:"local_timeout_seconds" env:"RENDERBRIDGE_RENDER_LOCAL_TIMEOUT_SECONDS"`
	WorkDir             string   `json:"work_dir" env:"RENDERBRIDGE_RENDER_WORK_DIR"`
}

type QRCodeConfig struct {
	Endpoint       string `json:"endpoint" env:"RENDERBRIDGE_QRCODE_ENDPOINT"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"RENDERBRIDGE_QRCODE_TIMEOUT_SECONDS"`
}

type PlatformsConfig struct {
	OneBot   OneBotConfig   `json:"onebot"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type OneBotConfig struct {
	Enabled           bool   `json:"enabled" env:"RENDERBRIDGE_PLATFORMS_ONEBOT_ENABLED"`
	WSUrl             string `json:"ws_url" env:"RENDERBRIDGE_PLATFORMS_ONEBOT_WS_URL"`
	AccessToken       string `json:"access_token" env:"RENDERBRIDGE_PLATFORMS_ONEBOT_ACCESS_TOKEN"`
	ReconnectInterval int    `json:"reconnect_interval" env:"RENDERBRIDGE_PLATFORMS_ONEBOT_RECONNECT_INTERVAL"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled" env:"RENDERBRIDGE_PLATFORMS_TELEGRAM_ENABLED"`
	Token   string `json:"token" env:"RENDERBRIDGE_PLATFORMS_TELEGRAM_TOKEN"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled" env:"RENDERBRIDGE_PLATFORMS_DISCORD_ENABLED"`
	Token   string `json:"token" env:"RENDERBRIDGE_PLATFORMS_DISCORD_TOKEN"`
}

// DeliveryConfig pins delivery to a specific platform instance. When
// Platform and SelfID are empty the dispatcher picks the first running
// client instead.
type DeliveryConfig struct {
	Platform       string `json:"platform" env:"RENDERBRIDGE_DELIVERY_PLATFORM"`
	SelfID         string `json:"self_id" env:"RENDERBRIDGE_DELIVERY_SELF_ID"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"RENDERBRIDGE_DELIVERY_TIMEOUT_SECONDS"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      11451,
			APIPath:   "/api/render/image",
			AuthToken: "",
		},
		Templates: TemplatesConfig{
			Dir:        "templates",
			Inline:     []InlineTemplate{},
			ReloadCron: "",
		},
		Render: RenderConfig{
			APIURL:              "",
			APITimeoutSeconds:   30,
			LocalCommand:        "wkhtmltoimage",
			LocalArgs:           []string{"--quiet"},
			LocalTimeoutSeconds: 30,
			WorkDir:             filepath.Join(os.TempDir(), "renderbridge"),
		},
		QRCode: QRCodeConfig{
			Endpoint:       "https://api.2dcode.biz/v1/create-qr-code",
			TimeoutSeconds: 10,
		},
		Platforms: PlatformsConfig{
			OneBot: OneBotConfig{
				Enabled:           false,
				WSUrl:             "ws://127.0.0.1:3001",
				AccessToken:       "",
				ReconnectInterval: 5,
			},
			Telegram: TelegramConfig{},
			Discord:  DiscordConfig{},
		},
		Delivery: DeliveryConfig{
			Platform:       "",
			SelfID:         "",
			TimeoutSeconds: 30,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
