package telegram

import (
	"context"
	"fmt"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kiranshivaraju/tubedrop/internal/delivery"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Messenger implements delivery.Messenger on the Telegram Bot API. Chat ids
// are decimal strings.
type Messenger struct {
	api botAPI
}

// NewMessenger wraps api.
func NewMessenger(api botAPI) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) Send(ctx context.Context, chatID, text string) (delivery.MessageRef, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return delivery.MessageRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return delivery.MessageRef{}, err
	}
	sent, err := m.api.Send(tgbotapi.NewMessage(id, text))
	if err != nil {
		return delivery.MessageRef{}, fmt.Errorf("telegram send: %w", err)
	}
	return delivery.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

func (m *Messenger) Edit(ctx context.Context, ref delivery.MessageRef, text string) error {
	id, err := parseChatID(ref.ChatID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return fmt.Errorf("invalid telegram message id %q", ref.MessageID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Request(tgbotapi.NewEditMessageText(id, msgID, text)); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func (m *Messenger) Upload(ctx context.Context, chatID string, file delivery.Upload) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	f, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ctx.Err(); err != nil {
		return err
	}

	reader := tgbotapi.FileReader{Name: file.Filename, Reader: f}
	var msg tgbotapi.Chattable
	if file.Format == models.FormatAudio {
		audio := tgbotapi.NewAudio(id, reader)
		audio.Caption = file.Caption
		msg = audio
	} else {
		video := tgbotapi.NewVideo(id, reader)
		video.Caption = file.Caption
		video.SupportsStreaming = true
		msg = video
	}

	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("telegram upload: %w", err)
	}
	return nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q", s)
	}
	return id, nil
}

var _ delivery.Messenger = (*Messenger)(nil)
