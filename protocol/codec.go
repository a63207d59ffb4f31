package protocol

import (
	"chat-relay/domain"
	"fmt"
	"strings"
	"time"
)

const (
	rateLimitedText = "You're sending messages too quickly. Please slow down."
	welcomePrefix   = "Welcome, "
	takenPrefix     = "Nickname '"
	takenMiddle     = "' is taken. You've been assigned '"
	notFoundPrefix  = "User '"
	notFoundSuffix  = "' not found or offline."
	privateTag      = "[Private] "
	privateToTag    = "[Private to "
	joinedSuffix    = " has joined the chat!"
	leftSuffix      = " has left the chat!"
)

var nameRejectedText = fmt.Sprintf("Nickname cannot contain '%c'. Please try again.", domain.ReservedMarker)

// Encode renders a payload in the text form understood by every client.
func Encode(p Payload) string {
	switch p.Kind {
	case KindWelcome:
		return welcomePrefix + p.Name + "!"
	case KindNameReassigned:
		return takenPrefix + p.Requested + takenMiddle + p.Name + "'"
	case KindNameRejected:
		return nameRejectedText
	case KindUserList:
		return UsersPrefix + strings.Join(p.Names, ",")
	case KindPublic:
		return fmt.Sprintf("[%s] %s: %s", clock(p.At), p.Name, p.Text)
	case KindPrivateIncoming:
		return fmt.Sprintf("[%s] %s%s: %s", clock(p.At), privateTag, p.Name, p.Text)
	case KindPrivateConfirm:
		return fmt.Sprintf("[%s] %s%s]: %s", clock(p.At), privateToTag, p.Peer, p.Text)
	case KindUserNotFound:
		return notFoundPrefix + p.Name + notFoundSuffix
	case KindRateLimited:
		return rateLimitedText
	case KindJoined:
		return fmt.Sprintf("[%s] %s%s", clock(p.At), p.Name, joinedSuffix)
	case KindLeft:
		return fmt.Sprintf("[%s] %s%s", clock(p.At), p.Name, leftSuffix)
	default:
		return p.Raw
	}
}

// Decode classifies a line received from the broker.
// Lines that match no known shape come back as KindUnknown with Raw set.
func Decode(line string) Payload {
	switch {
	case line == nameRejectedText:
		return NameRejected()
	case line == rateLimitedText:
		return RateLimited()
	case strings.HasPrefix(line, UsersPrefix):
		return UserList(splitNames(strings.TrimPrefix(line, UsersPrefix)))
	case strings.HasPrefix(line, welcomePrefix) && strings.HasSuffix(line, "!"):
		return Welcome(strings.TrimSuffix(strings.TrimPrefix(line, welcomePrefix), "!"))
	case strings.HasPrefix(line, notFoundPrefix) && strings.HasSuffix(line, notFoundSuffix):
		return UserNotFound(strings.TrimSuffix(strings.TrimPrefix(line, notFoundPrefix), notFoundSuffix))
	case strings.HasPrefix(line, takenPrefix) && strings.HasSuffix(line, "'"):
		body := strings.TrimSuffix(strings.TrimPrefix(line, takenPrefix), "'")
		if requested, assigned, ok := strings.Cut(body, takenMiddle); ok {
			return NameReassigned(requested, assigned)
		}
	}
	if at, rest, ok := cutClock(line); ok {
		if p, ok := decodeTimestamped(at, rest); ok {
			return p
		}
	}
	return Payload{Kind: KindUnknown, Raw: line}
}

func decodeTimestamped(at time.Time, rest string) (Payload, bool) {
	switch {
	case strings.HasPrefix(rest, privateTag):
		sender, text, ok := strings.Cut(strings.TrimPrefix(rest, privateTag), ": ")
		return PrivateIncoming(at, sender, text), ok
	case strings.HasPrefix(rest, privateToTag):
		recipient, text, ok := strings.Cut(strings.TrimPrefix(rest, privateToTag), "]: ")
		return PrivateConfirm(at, recipient, text), ok
	}
	if name, ok := strings.CutSuffix(rest, joinedSuffix); ok && !strings.Contains(name, ": ") {
		return Joined(at, name), true
	}
	if name, ok := strings.CutSuffix(rest, leftSuffix); ok && !strings.Contains(name, ": ") {
		return Left(at, name), true
	}
	sender, text, ok := strings.Cut(rest, ": ")
	return Public(at, sender, text), ok
}

// cutClock splits "[HH:MM:SS] rest".
func cutClock(line string) (time.Time, string, bool) {
	const width = len("[15:04:05] ")
	if len(line) < width || line[0] != '[' || line[width-2:width] != "] " {
		return time.Time{}, "", false
	}
	at, err := time.Parse(ClockLayout, line[1:width-2])
	if err != nil {
		return time.Time{}, "", false
	}
	return at, line[width:], true
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func clock(t time.Time) string {
	return t.Format(ClockLayout)
}
