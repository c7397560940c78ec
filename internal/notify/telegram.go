// Package notify delivers alerts to a Telegram chat through the Bot API.
package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends HTML-formatted messages to a single chat. Sends are
// one-shot: a failed send is the caller's to log and forget.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(api *tgbotapi.BotAPI, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID}
}

// Notify sends text to the configured chat with HTML formatting.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notification cancelled: %w", err)
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = false

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// SendStartupMessage posts a test notification so a misconfigured chat ID
// surfaces at startup instead of on the first restock.
func (t *Telegram) SendStartupMessage(ctx context.Context, productURL string) error {
	text := fmt.Sprintf(
		"🔄 Casio watch notifier started.\n\nWatching: %s\nYou will get one alert each time it comes back in stock.",
		productURL)
	if err := t.Notify(ctx, text); err != nil {
		return err
	}
	log.Println("Startup test notification sent successfully.")
	return nil
}
