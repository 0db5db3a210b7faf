// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for graphenko.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Telegram TelegramConfig `yaml:"telegram"`
	Bot      BotConfig      `yaml:"bot"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// TelegramConfig holds the Bot API connection settings.
type TelegramConfig struct {
	// Token is the bot token, usually injected as ${BOT_TOKEN}.
	Token string `yaml:"token"`

	// APIURL overrides the Bot API base URL, mainly for tests.
	APIURL string `yaml:"api_url"`
}

// BotConfig holds the notification behavior settings.
type BotConfig struct {
	// ChatsFile is the path of the persisted chat map.
	ChatsFile string `yaml:"chats_file"`

	// DefaultCaption is used for chats without a caption override.
	DefaultCaption string `yaml:"default_caption"`

	// ImagesBaseURL is the required prefix for /graphenko_image URLs.
	ImagesBaseURL string `yaml:"images_base_url"`

	// DataBaseURL is where per-region outage schedule JSON lives.
	DataBaseURL string `yaml:"data_base_url"`

	// ChatDelay is the pause between chats during reconciliation. It only
	// throttles Bot API traffic; correctness does not depend on it.
	ChatDelay time.Duration `yaml:"chat_delay"`

	// WelcomeDelay is the pause between welcome-message sends.
	WelcomeDelay time.Duration `yaml:"welcome_delay"`
}

// MonitorConfig holds settings for the availability monitor companion.
type MonitorConfig struct {
	// Timeout bounds each TCP liveness dial.
	Timeout time.Duration `yaml:"timeout"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Bot.ChatsFile == "" {
		c.Bot.ChatsFile = "graphenko-chats.json"
	}
	if c.Bot.DefaultCaption == "" {
		c.Bot.DefaultCaption = "⚡️ Графік стабілізаційних вімкнень. Це повідомлення оновлюється щогодини автоматично."
	}
	if c.Bot.ImagesBaseURL == "" {
		c.Bot.ImagesBaseURL = "https://raw.githubusercontent.com/Baskerville42/outage-data-ua/main/images/"
	}
	if c.Bot.DataBaseURL == "" {
		c.Bot.DataBaseURL = "https://raw.githubusercontent.com/Baskerville42/outage-data-ua/main/data/"
	}
	if c.Bot.ChatDelay == 0 {
		c.Bot.ChatDelay = time.Second
	}
	if c.Bot.WelcomeDelay == 0 {
		c.Bot.WelcomeDelay = 300 * time.Millisecond
	}
	if c.Monitor.Timeout == 0 {
		c.Monitor.Timeout = 5 * time.Second
	}
}
