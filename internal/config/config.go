package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/NekoSenseii/casio-watch-notifier/internal/stock"
)

const (
	StrategyKeyword    = "keyword"
	StrategyStructured = "structured"
)

// AppConfig is everything the binaries need, resolved from .env, the
// environment, and flags. Required values missing at startup are fatal;
// the process never runs with partial configuration.
type AppConfig struct {
	TelegramBotToken string
	TelegramChatID   int64

	ProductURL string

	CheckInterval  time.Duration
	FetchTimeout   time.Duration
	MaxBytes       int64
	Strategy       string
	DetectionRules stock.Rules

	HealthSecret   string
	HealthCooldown time.Duration
	Port           string
	BaseURL        string
}

// rulesFile is the optional YAML detection-rules document. Empty lists fall
// back to the built-in defaults.
type rulesFile struct {
	OutOfStockPhrases []string `yaml:"outOfStockPhrases"`
	InStockPhrases    []string `yaml:"inStockPhrases"`
	Selectors         []string `yaml:"selectors"`
}

func loadEnvVariables() {
	log.Println("Attempting to load .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded (%v). Using environment variables directly.", err)
	} else {
		log.Println(".env file loaded successfully.")
	}
}

// ParseConfiguration resolves the full configuration or fails with the
// first missing/invalid required value.
func ParseConfiguration() (*AppConfig, error) {
	checkIntervalPtr := flag.Duration("check-interval", 60*time.Second, "interval between stock checks")
	fetchTimeoutPtr := flag.Duration("fetch-timeout", 10*time.Second, "wall-clock limit for one page fetch")
	maxBytesPtr := flag.Int64("max-bytes", 2<<20, "maximum response body size in bytes")
	strategyPtr := flag.String("strategy", StrategyKeyword, "stock detection strategy: keyword or structured")
	healthCooldownPtr := flag.Duration("health-cooldown", 10*time.Second, "minimum spacing between accepted health-check calls")
	flag.Parse()

	loadEnvVariables()

	cfg := &AppConfig{
		TelegramBotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		ProductURL:       strings.TrimSpace(os.Getenv("PRODUCT_URL")),
		HealthSecret:     strings.TrimSpace(os.Getenv("HEALTH_SECRET")),
		Port:             strings.TrimSpace(os.Getenv("PORT")),
		BaseURL:          strings.TrimSpace(os.Getenv("BASE_URL")),
		CheckInterval:    *checkIntervalPtr,
		FetchTimeout:     *fetchTimeoutPtr,
		MaxBytes:         *maxBytesPtr,
		Strategy:         strings.ToLower(strings.TrimSpace(*strategyPtr)),
	}

	if err := requireEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken); err != nil {
		return nil, err
	}
	chatID, err := parseChatID(os.Getenv("TELEGRAM_CHAT_ID"))
	if err != nil {
		return nil, err
	}
	cfg.TelegramChatID = chatID

	if err := validateProductURL(cfg.ProductURL); err != nil {
		return nil, err
	}
	if err := requireEnv("HEALTH_SECRET", cfg.HealthSecret); err != nil {
		return nil, err
	}
	if cfg.Strategy != StrategyKeyword && cfg.Strategy != StrategyStructured {
		return nil, fmt.Errorf("unknown strategy %q (want %s or %s)", cfg.Strategy, StrategyKeyword, StrategyStructured)
	}
	if cfg.CheckInterval <= 0 {
		return nil, errors.New("check-interval must be positive")
	}
	if cfg.MaxBytes <= 0 {
		return nil, errors.New("max-bytes must be positive")
	}

	if *healthCooldownPtr <= 0 {
		return nil, fmt.Errorf("health-cooldown must be positive, got %s", *healthCooldownPtr)
	}
	cfg.HealthCooldown = *healthCooldownPtr

	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	rules, err := loadDetectionRules(strings.TrimSpace(os.Getenv("DETECTION_RULES")))
	if err != nil {
		return nil, err
	}
	cfg.DetectionRules = rules

	log.Printf("Telegram Bot Token Length: %d", len(cfg.TelegramBotToken))
	if len(cfg.TelegramBotToken) > 10 {
		log.Printf("Telegram Bot Token Hint: Starts with '%s', ends with '%s'",
			cfg.TelegramBotToken[:5], cfg.TelegramBotToken[len(cfg.TelegramBotToken)-5:])
	}
	log.Printf("Watching product page: %s", cfg.ProductURL)
	log.Printf("Strategy: %s, interval: %s, fetch timeout: %s, size limit: %d bytes",
		cfg.Strategy, cfg.CheckInterval, cfg.FetchTimeout, cfg.MaxBytes)

	return cfg, nil
}

// requireEnv rejects a missing required variable with the same message
// shape for every one of them, so startup failures read uniformly.
func requireEnv(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is empty. Please set it in your environment or .env file", name)
	}
	return nil
}

func parseChatID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("TELEGRAM_CHAT_ID is empty. Please set it in your environment or .env file")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("TELEGRAM_CHAT_ID %q is not a valid chat id: %w", raw, err)
	}
	return id, nil
}

func validateProductURL(raw string) error {
	if raw == "" {
		return errors.New("PRODUCT_URL is empty. Please set it in your environment or .env file")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("PRODUCT_URL is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("PRODUCT_URL must be an absolute http(s) URL, got %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("PRODUCT_URL has no host: %q", raw)
	}
	return nil
}

// loadDetectionRules merges an optional YAML rules file over the defaults.
// No path means defaults; a path that cannot be read or parsed is a
// configuration error, not a silent fallback.
func loadDetectionRules(path string) (stock.Rules, error) {
	rules := stock.DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return stock.Rules{}, fmt.Errorf("reading detection rules %s: %w", path, err)
	}
	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return stock.Rules{}, fmt.Errorf("parsing detection rules %s: %w", path, err)
	}

	merged := rules.Merge(stock.Rules{
		OutOfStockPhrases: lowerAll(file.OutOfStockPhrases),
		InStockPhrases:    lowerAll(file.InStockPhrases),
		Selectors:         trimAll(file.Selectors),
	})
	log.Printf("Loaded detection rules from %s", path)
	return merged, nil
}

// lowerAll normalizes phrase lists; the classifiers match against lowered
// page text.
func lowerAll(values []string) []string {
	out := trimAll(values)
	for i, v := range out {
		out[i] = strings.ToLower(v)
	}
	return out
}

// trimAll keeps the original case: CSS selectors match ids and classes
// case-sensitively, so lowering them would silently break user rules.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
