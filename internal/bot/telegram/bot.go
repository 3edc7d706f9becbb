// Package telegram is the Telegram front-end: it parses commands and hands
// requests to the delivery dispatcher.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/internal/delivery"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// Dispatcher is the slice of delivery.Dispatcher the bot drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, req delivery.Request) (models.Job, error)
	Cancel(requester string) (uuid.UUID, error)
}

// Bot routes Telegram updates to the dispatcher.
type Bot struct {
	api        botAPI
	dispatcher Dispatcher
	allowed    map[int64]bool
	logger     *slog.Logger
}

// NewBot creates a Bot. An empty allowed list lets everyone use it.
func NewBot(api botAPI, dispatcher Dispatcher, allowed []int64, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[int64]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}
	return &Bot{api: api, dispatcher: dispatcher, allowed: set, logger: logger.With("frontend", "telegram")}
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	b.logger.Info("telegram bot listening")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if update.Message != nil {
				b.handle(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.From == nil {
		return
	}
	if len(b.allowed) > 0 && !b.allowed[msg.From.ID] {
		b.logger.Warn("rejected command from unlisted user", "user_id", msg.From.ID, "command", msg.Command())
		b.reply(msg, "❌ You are not allowed to use this bot.")
		return
	}

	switch cmd := msg.Command(); cmd {
	case "start", "help":
		b.reply(msg, helpText)
	case "cancel":
		b.cancel(msg)
	default:
		format, ok := formatForCommand(cmd)
		if !ok {
			b.reply(msg, "Unknown command. Try /help.")
			return
		}
		b.convert(ctx, msg, format)
	}
}

func (b *Bot) convert(ctx context.Context, msg *tgbotapi.Message, format string) {
	args, err := parseConvertArgs(msg.CommandArguments())
	if err != nil {
		b.reply(msg, "Usage: /"+msg.Command()+" <url> [title] [--group]")
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	req := delivery.Request{
		URL:           args.URL,
		Format:        format,
		Title:         args.Title,
		Requester:     requesterID(msg.From.ID),
		RequesterChat: strconv.FormatInt(msg.From.ID, 10),
		OriginChat:    chatID,
		OriginIsGroup: msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
		ToGroup:       args.ToGroup,
	}

	job, err := b.dispatcher.Dispatch(ctx, req)
	if err != nil {
		b.reply(msg, delivery.ErrorReply(err))
		return
	}
	b.logger.Info("job dispatched", "job_id", job.ID, "user_id", msg.From.ID, "chat_id", msg.Chat.ID)
}

func (b *Bot) cancel(msg *tgbotapi.Message) {
	id, err := b.dispatcher.Cancel(requesterID(msg.From.ID))
	if err != nil {
		b.reply(msg, delivery.ErrorReply(err))
		return
	}
	b.logger.Info("job cancelled by user", "job_id", id, "user_id", msg.From.ID)
	b.reply(msg, "🛑 Download cancelled.")
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.logger.Warn("send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func requesterID(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}
