package telegram

import (
	"errors"
	"strings"
)

const groupFlag = "--group"

const helpText = `Send a video link and I'll convert it.

/mp3 <url> [title] [--group]  audio as mp3
/mp4 <url> [title] [--group]  video as mp4
/cancel  stop your running download

--group posts the file into this group instead of your private chat.
A title of "no" keeps the video's own title.`

var errMissingURL = errors.New("missing url")

// convertArgs is a parsed /mp3 or /mp4 command.
type convertArgs struct {
	URL     string
	Title   string
	ToGroup bool
}

// parseConvertArgs splits "<url> [title words...] [--group]". The flag may
// appear anywhere after the url.
func parseConvertArgs(args string) (convertArgs, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return convertArgs{}, errMissingURL
	}

	out := convertArgs{URL: fields[0]}
	var title []string
	for _, f := range fields[1:] {
		if strings.EqualFold(f, groupFlag) {
			out.ToGroup = true
			continue
		}
		title = append(title, f)
	}
	out.Title = strings.Join(title, " ")
	return out, nil
}

// formatForCommand maps a command name to a submit format.
func formatForCommand(cmd string) (string, bool) {
	switch strings.ToLower(cmd) {
	case "mp3":
		return "mp3", true
	case "mp4":
		return "mp4", true
	default:
		return "", false
	}
}
