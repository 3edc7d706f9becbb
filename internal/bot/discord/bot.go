// Package discord is the Discord front-end: slash commands feed the delivery
// dispatcher.
package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/internal/delivery"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// Dispatcher is the slice of delivery.Dispatcher the bot drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, req delivery.Request) (models.Job, error)
	Cancel(requester string) (uuid.UUID, error)
}

// Bot answers slash command interactions.
type Bot struct {
	s          session
	dispatcher Dispatcher
	allowed    map[string]bool
	logger     *slog.Logger
}

// NewBot creates a Bot. An empty allowed list lets everyone use it.
func NewBot(s session, dispatcher Dispatcher, allowed []string, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}
	return &Bot{s: s, dispatcher: dispatcher, allowed: set, logger: logger.With("frontend", "discord")}
}

// Register installs the slash commands for appID, scoped to guildID when set.
func Register(s *discordgo.Session, appID, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	return err
}

// HandleInteraction is registered with discordgo.Session.AddHandler.
func (b *Bot) HandleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	b.handle(context.Background(), i.Interaction)
}

func (b *Bot) handle(ctx context.Context, i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	user := interactionUser(i)
	if user == nil {
		return
	}
	data := i.ApplicationCommandData()

	if len(b.allowed) > 0 && !b.allowed[user.ID] {
		b.logger.Warn("rejected command from unlisted user", "user_id", user.ID, "command", data.Name)
		b.respond(i, "❌ You are not allowed to use this command.")
		return
	}

	if data.Name == cmdCancel {
		b.cancel(i, user)
		return
	}
	format, ok := formatForCommand(data.Name)
	if !ok {
		b.respond(i, "Unknown command.")
		return
	}
	b.convert(ctx, i, user, format, parseConvertOptions(data.Options))
}

func (b *Bot) convert(ctx context.Context, i *discordgo.Interaction, user *discordgo.User, format string, opts convertOptions) {
	dm, err := b.s.UserChannelCreate(user.ID, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Error("open dm channel", "user_id", user.ID, "error", err)
		b.respond(i, "❌ I can't send you direct messages.")
		return
	}

	job, err := b.dispatcher.Dispatch(ctx, delivery.Request{
		URL:           opts.URL,
		Format:        format,
		Title:         opts.Title,
		Requester:     requesterID(user.ID),
		RequesterChat: dm.ID,
		OriginChat:    i.ChannelID,
		OriginIsGroup: i.GuildID != "",
		ToGroup:       opts.ToGroup,
	})
	if err != nil {
		b.respond(i, delivery.ErrorReply(err))
		return
	}

	b.logger.Info("job dispatched", "job_id", job.ID, "user_id", user.ID, "channel_id", i.ChannelID)
	b.respond(i, delivery.AcceptedReply(format))
}

func (b *Bot) cancel(i *discordgo.Interaction, user *discordgo.User) {
	id, err := b.dispatcher.Cancel(requesterID(user.ID))
	if err != nil {
		b.respond(i, delivery.ErrorReply(err))
		return
	}
	b.logger.Info("job cancelled by user", "job_id", id, "user_id", user.ID)
	b.respond(i, "🛑 Download cancelled.")
}

// respond answers the interaction with an ephemeral message.
func (b *Bot) respond(i *discordgo.Interaction, text string) {
	err := b.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("respond to interaction", "error", err)
	}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func requesterID(userID string) string {
	return "dc:" + userID
}
