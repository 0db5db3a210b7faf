package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate checks the structural validity of a Config.
// All violations are collected and joined rather than reported one by one.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("config: telegram.token is required"))
	} else if !tokenPattern.MatchString(cfg.Telegram.Token) {
		errs = append(errs, errors.New("config: telegram.token format invalid (expected <bot_id>:<hash>)"))
	}

	if err := checkHTTPURL("telegram.api_url", cfg.Telegram.APIURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkHTTPURL("bot.images_base_url", cfg.Bot.ImagesBaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkHTTPURL("bot.data_base_url", cfg.Bot.DataBaseURL); err != nil {
		errs = append(errs, err)
	}

	if cfg.Bot.ChatDelay < 0 {
		errs = append(errs, fmt.Errorf("config: bot.chat_delay must not be negative, got %s", cfg.Bot.ChatDelay))
	}
	if cfg.Bot.WelcomeDelay < 0 {
		errs = append(errs, fmt.Errorf("config: bot.welcome_delay must not be negative, got %s", cfg.Bot.WelcomeDelay))
	}
	if cfg.Monitor.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: monitor.timeout must not be negative, got %s", cfg.Monitor.Timeout))
	}

	return errors.Join(errs...)
}

func checkHTTPURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: %s must be a valid http/https URL, got %q", field, value)
	}
	return nil
}
