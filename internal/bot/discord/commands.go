package discord

import (
	"github.com/bwmarrin/discordgo"
)

const (
	cmdMP3    = "ytmp3"
	cmdMP4    = "ytmp4"
	cmdCancel = "cancel"

	destDM      = "dm"
	destChannel = "channel"
)

// Commands are the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		convertCommand(cmdMP3, "Convert a YouTube video to MP3"),
		convertCommand(cmdMP4, "Download a YouTube video as MP4"),
		{
			Name:        cmdCancel,
			Description: "Cancel your running download",
		},
	}
}

func convertCommand(name, description string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Video link",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: `File title ("no" keeps the video title)`,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "destination",
				Description: "Where to send the file",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Direct message", Value: destDM},
					{Name: "This channel", Value: destChannel},
				},
			},
		},
	}
}

// convertOptions is a parsed ytmp3/ytmp4 interaction.
type convertOptions struct {
	URL     string
	Title   string
	ToGroup bool
}

func parseConvertOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) convertOptions {
	var out convertOptions
	for _, o := range opts {
		if o.Type != discordgo.ApplicationCommandOptionString {
			continue
		}
		switch o.Name {
		case "url":
			out.URL = o.StringValue()
		case "title":
			out.Title = o.StringValue()
		case "destination":
			out.ToGroup = o.StringValue() == destChannel
		}
	}
	return out
}

func formatForCommand(name string) (string, bool) {
	switch name {
	case cmdMP3:
		return "mp3", true
	case cmdMP4:
		return "mp4", true
	default:
		return "", false
	}
}
