// Package bot is the interactive Telegram command layer. It only reads
// poller state through snapshots; the one write path it has is the manual
// /check trigger, which goes through the poller's own guarded cycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/NekoSenseii/casio-watch-notifier/internal/poller"
)

const helpText = `<b>Casio Watch Notifier</b>

I watch one product page and ping this chat when it comes back in stock.

<b>Commands:</b>
/status - current stock status and last check time
/check - run a stock check right now
/help - this message`

// Bot wires Telegram updates to poller queries and the manual trigger.
type Bot struct {
	api    *tgbotapi.BotAPI
	poller *poller.Poller
}

func New(api *tgbotapi.BotAPI, p *poller.Poller) *Bot {
	return &Bot{api: api, poller: p}
}

// Run consumes the update channel until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Interactive bot ready (account: %s)", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	log.Printf("Received command from chat %d: %s", message.Chat.ID, message.Text)

	switch message.Command() {
	case "start", "help":
		b.reply(message.Chat.ID, helpText)
	case "status":
		b.reply(message.Chat.ID, b.formatStatus())
	case "check":
		b.reply(message.Chat.ID, b.runManualCheck(ctx))
	default:
		b.reply(message.Chat.ID, helpText)
	}
}

// runManualCheck invokes the poll cycle synchronously and reports the
// outcome. A rejected cycle means the scheduled loop is mid-check, which is
// an answer in itself.
func (b *Bot) runManualCheck(ctx context.Context) string {
	status, err := b.poller.RunOnce(ctx)
	switch {
	case errors.Is(err, poller.ErrCheckInProgress):
		return "⏳ A check is already running, try again in a few seconds."
	case err != nil:
		return fmt.Sprintf("⚠️ Check failed: %v\nStored status is unchanged.", err)
	default:
		return fmt.Sprintf("🔍 Check complete.\n\nStatus: <b>%s</b>", status)
	}
}

func (b *Bot) formatStatus() string {
	state := b.poller.Snapshot()

	lastCheck := "never"
	if !state.LastCheck.IsZero() {
		lastCheck = state.LastCheck.Format(time.RFC1123)
	}

	return fmt.Sprintf(
		"<b>📊 Watcher Status</b>\n\nProduct: %s\nStatus: <b>%s</b>\nLast check: %s\nChecks so far: %d\nUptime: %s",
		b.poller.ProductURL(), state.Status, lastCheck, state.Checks,
		state.Uptime(time.Now()).Round(time.Second))
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending reply to chat %d: %v", chatID, err)
	}
}
