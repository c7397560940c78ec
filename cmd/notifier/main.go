package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/NekoSenseii/casio-watch-notifier/internal/bot"
	"github.com/NekoSenseii/casio-watch-notifier/internal/config"
	"github.com/NekoSenseii/casio-watch-notifier/internal/fetch"
	"github.com/NekoSenseii/casio-watch-notifier/internal/health"
	"github.com/NekoSenseii/casio-watch-notifier/internal/notify"
	"github.com/NekoSenseii/casio-watch-notifier/internal/poller"
	"github.com/NekoSenseii/casio-watch-notifier/internal/stock"
)

func main() {
	appConfig, err := config.ParseConfiguration()
	if err != nil {
		log.Fatalf("Failed to parse configuration with error[%s]", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("Starting Casio watch stock notifier...")

	api, err := tgbotapi.NewBotAPI(appConfig.TelegramBotToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot API with error[%s]", err.Error())
	}
	log.Printf("Authorized on account %s", api.Self.UserName)

	notifier := notify.NewTelegram(api, appConfig.TelegramChatID)
	if err := notifier.SendStartupMessage(ctx, appConfig.ProductURL); err != nil {
		log.Fatalf("Failed to send startup test notification with error[%s]. Check your Telegram configuration.", err.Error())
	}

	classifier, fetcher := buildDetection(appConfig)
	stockPoller := poller.New(fetcher, classifier, notifier, appConfig.ProductURL, appConfig.CheckInterval)

	healthServer := health.NewServer(stockPoller, appConfig.HealthSecret, appConfig.HealthCooldown)
	go func() {
		addr := ":" + appConfig.Port
		log.Printf("Health endpoint listening on %s", addr)
		if err := http.ListenAndServe(addr, healthServer.Handler()); err != nil {
			log.Fatalf("Health server failed with error[%s]", err.Error())
		}
	}()
	go health.SelfPing(ctx, appConfig.BaseURL, 0)

	commandBot := bot.New(api, stockPoller)
	go commandBot.Run(ctx)

	stockPoller.Run(ctx)
}

// buildDetection wires the configured classifier strategy and a fetcher that
// can stop reading early when the keyword strategy already has its answer.
func buildDetection(appConfig *config.AppConfig) (stock.Classifier, *fetch.Fetcher) {
	opts := []fetch.Option{
		fetch.WithTimeout(appConfig.FetchTimeout),
		fetch.WithMaxBytes(appConfig.MaxBytes),
	}

	if appConfig.Strategy == config.StrategyStructured {
		return stock.NewStructuredClassifier(appConfig.DetectionRules), fetch.New(opts...)
	}

	keyword := stock.NewKeywordClassifier(appConfig.DetectionRules)
	opts = append(opts, fetch.WithEarlyClassifier(keyword))
	return keyword, fetch.New(opts...)
}
