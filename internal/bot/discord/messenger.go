package discord

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/kiranshivaraju/tubedrop/internal/delivery"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// session is the subset of *discordgo.Session the bot uses.
type session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Messenger implements delivery.Messenger on a Discord session. Chat ids are
// channel ids.
type Messenger struct {
	s session
}

// NewMessenger wraps s.
func NewMessenger(s session) *Messenger {
	return &Messenger{s: s}
}

func (m *Messenger) Send(ctx context.Context, chatID, text string) (delivery.MessageRef, error) {
	msg, err := m.s.ChannelMessageSend(chatID, text, discordgo.WithContext(ctx))
	if err != nil {
		return delivery.MessageRef{}, fmt.Errorf("discord send: %w", err)
	}
	return delivery.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

func (m *Messenger) Edit(ctx context.Context, ref delivery.MessageRef, text string) error {
	if _, err := m.s.ChannelMessageEdit(ref.ChatID, ref.MessageID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord edit: %w", err)
	}
	return nil
}

func (m *Messenger) Upload(ctx context.Context, chatID string, file delivery.Upload) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = m.s.ChannelMessageSendComplex(chatID, &discordgo.MessageSend{
		Content: file.Caption,
		Files: []*discordgo.File{{
			Name:        file.Filename,
			ContentType: contentType(file.Format),
			Reader:      f,
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord upload: %w", err)
	}
	return nil
}

func contentType(f models.Format) string {
	if f == models.FormatAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

var _ delivery.Messenger = (*Messenger)(nil)
