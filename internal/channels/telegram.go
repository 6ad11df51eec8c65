package channels

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tellergate/tellergate/internal/bus"
	"github.com/tellergate/tellergate/internal/config"
)

const telegramMaxLen = 4000

// TelegramChannel implements the Telegram bot via long polling.
type TelegramChannel struct {
	Base
	cfg *config.TelegramConfig
	bot *tgbotapi.BotAPI
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(cfg *config.TelegramConfig, b bus.Bus) *TelegramChannel {
	return &TelegramChannel{
		Base: NewBase(bus.ChannelTelegram, b, cfg.AllowFrom),
		cfg:  cfg,
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}
	bot, err := tgbotapi.NewBotAPI(t.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = bot
	slog.Info("telegram: connected", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go t.handleUpdate(ctx, update)
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	senderID := fmt.Sprintf("%d", msg.From.ID)
	chatID := fmt.Sprintf("%d", msg.Chat.ID)

	// Typing indicator while the orchestrator works.
	typingCtx, cancelTyping := context.WithTimeout(ctx, 30*time.Second)
	defer cancelTyping()
	go t.sendTypingLoop(typingCtx, msg.Chat.ID)

	t.HandleMessage(senderID, chatID, msg.Text)
}

func (t *TelegramChannel) sendTypingLoop(ctx context.Context, chatID int64) {
	for {
		if t.bot != nil {
			action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
			_, _ = t.bot.Send(action)
		}
		select {
		case <-time.After(4 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (t *TelegramChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram: bot not running")
	}
	var chatID int64
	if _, err := fmt.Sscanf(msg.ChatID(), "%d", &chatID); err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", msg.ChatID(), err)
	}
	for _, chunk := range splitMessage(msg.Content(), telegramMaxLen) {
		reply := tgbotapi.NewMessage(chatID, chunk)
		if _, err := t.bot.Send(reply); err != nil {
			return fmt.Errorf("telegram: send: %w", err)
		}
	}
	return nil
}
