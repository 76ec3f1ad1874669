package telegram

import (
	"regexp"
	"strconv"
	"strings"
)

// Command is the tagged result of parsing an inbound free-text message.
type Command int

const (
	CmdNone Command = iota
	CmdMarkDone
)

// doneRe accepts an optional recognized phrase followed by a trailing task
// number, case-insensitive. The Hebrew phrasings are what staff actually type.
var doneRe = regexp.MustCompile(`(?i)(?:סיימתי משימה|done|finish|משימה)?\s*(\d+)$`)

// ParseCommand classifies an inbound message. A trailing integer, optionally
// preceded by a completion phrase, marks that task number as done.
func ParseCommand(text string) (Command, int) {
	m := doneRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return CmdNone, 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return CmdNone, 0
	}
	return CmdMarkDone, n
}
