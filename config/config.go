package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nanzhong/nsequote/market"
)

type Config struct {
	// Exchange
	NSEBaseURL      string
	RequestTimeout  time.Duration
	HistoryLookback time.Duration
	// Logging
	LogFile  string
	LogLevel string
	// Slack
	Serve              bool
	Addr               string
	SlackBotToken      string
	SlackSigningSecret string
}

// Load reads an optional .env file, applies environment defaults and then
// parses args on top of them.
func Load(name string, args []string) (Config, error) {
	_ = godotenv.Load()

	var (
		cfg      Config
		timeout  string
		lookback string
	)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.NSEBaseURL, "nse-base-url", envOrString("NSE_BASE_URL", market.DefaultNSEBaseURL), "Base URL of the NSE website.")
	fs.StringVar(&timeout, "timeout", envOrString("REQUEST_TIMEOUT", market.DefaultTimeout.String()), "Timeout for requests to NSE.")
	fs.StringVar(&lookback, "history-lookback", envOrString("HISTORY_LOOKBACK", market.DefaultHistoryLookback.String()), "How far back daily bars are requested for the last traded price.")
	fs.StringVar(&cfg.LogFile, "log-file", envOrString("LOG_FILE", "stock_tracker.log"), "File log lines are appended to. Empty disables file logging.")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrString("LOG_LEVEL", "info"), "Minimum log level.")
	fs.BoolVar(&cfg.Serve, "serve", false, "Serve the Slack bot instead of the interactive menu.")
	fs.StringVar(&cfg.Addr, "addr", envOrString("ADDR", "0.0.0.0:8080"), "Address to listen on.")
	fs.StringVar(&cfg.SlackBotToken, "slack-bot-token", envOrString("SLACK_BOT_TOKEN", ""), "Slack token to use.")
	fs.StringVar(&cfg.SlackSigningSecret, "slack-signing-secret", envOrString("SLACK_SIGNING_SECRET", ""), "Slack signing secret for requests events.")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.RequestTimeout, err = time.ParseDuration(timeout); err != nil {
		return Config{}, fmt.Errorf("parsing timeout: %w", err)
	}
	if cfg.HistoryLookback, err = time.ParseDuration(lookback); err != nil {
		return Config{}, fmt.Errorf("parsing history lookback: %w", err)
	}
	if cfg.Serve && cfg.SlackBotToken == "" {
		return Config{}, fmt.Errorf("slack bot token is required with -serve")
	}

	return cfg, nil
}

func envOrString(envKey, defaultValue string) string {
	value, defined := os.LookupEnv(envKey)
	if defined {
		return value
	}
	return defaultValue
}
