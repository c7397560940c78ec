// Headless entry point: poller and health endpoint only, no interactive
// command bot. Useful where a second bot instance would collide with one
// already consuming the update channel.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

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

	log.Println("Starting Casio watch stock watcher (headless)...")

	api, err := tgbotapi.NewBotAPI(appConfig.TelegramBotToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot API with error[%s]", err.Error())
	}

	notifier := notify.NewTelegram(api, appConfig.TelegramChatID)

	var classifier stock.Classifier
	opts := []fetch.Option{
		fetch.WithTimeout(appConfig.FetchTimeout),
		fetch.WithMaxBytes(appConfig.MaxBytes),
	}
	if appConfig.Strategy == config.StrategyStructured {
		classifier = stock.NewStructuredClassifier(appConfig.DetectionRules)
	} else {
		keyword := stock.NewKeywordClassifier(appConfig.DetectionRules)
		opts = append(opts, fetch.WithEarlyClassifier(keyword))
		classifier = keyword
	}

	stockPoller := poller.New(fetch.New(opts...), classifier, notifier, appConfig.ProductURL, appConfig.CheckInterval)

	healthServer := health.NewServer(stockPoller, appConfig.HealthSecret, appConfig.HealthCooldown)
	go func() {
		addr := ":" + appConfig.Port
		log.Printf("Health endpoint listening on %s", addr)
		if err := http.ListenAndServe(addr, healthServer.Handler()); err != nil {
			log.Fatalf("Health server failed with error[%s]", err.Error())
		}
	}()
	go health.SelfPing(ctx, appConfig.BaseURL, 0)

	stockPoller.Run(ctx)
}
