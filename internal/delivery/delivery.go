// Package delivery pushes job progress and finished artifacts to chat
// front-ends.
package delivery

import (
	"context"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    string
	MessageID string
}

// Upload is a file to push into a chat.
type Upload struct {
	Path     string
	Filename string
	Caption  string
	Format   models.Format
}

// Messenger is the chat platform capability the Dispatcher needs.
// Implementations must be safe for concurrent use.
type Messenger interface {
	Send(ctx context.Context, chatID, text string) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	Upload(ctx context.Context, chatID string, file Upload) error
}

// Request is one bot command after platform parsing.
type Request struct {
	URL    string
	Format string
	Title  string

	// Requester is the stable identity of the user, used as the job owner.
	Requester string
	// RequesterChat is the direct-message chat with the requester.
	RequesterChat string
	// OriginChat is where the command was issued.
	OriginChat string
	// OriginIsGroup reports whether OriginChat is shared with other users.
	OriginIsGroup bool
	// ToGroup asks for the artifact to be posted into OriginChat.
	ToGroup bool
}

// GroupFallbackNote is appended to the caption when group delivery was asked
// for outside a group.
const GroupFallbackNote = "(group delivery only works from a group chat, so this was sent to you directly)"

// ResolveTarget picks the chat the artifact is uploaded to. Group delivery is
// honoured only when the request came from a group; otherwise the artifact goes
// to the requester and note explains why.
func ResolveTarget(req Request) (chatID, note string) {
	if !req.ToGroup {
		return req.RequesterChat, ""
	}
	if req.OriginIsGroup && req.OriginChat != "" {
		return req.OriginChat, ""
	}
	return req.RequesterChat, GroupFallbackNote
}

// Caption joins a title and an optional note.
func Caption(title, note string) string {
	if note == "" {
		return title
	}
	return title + "\n" + note
}
