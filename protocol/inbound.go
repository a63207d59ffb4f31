// Package protocol defines the line based wire protocol spoken between
// clients, relays and the broker.
//
// Inbound lines are classified once into a closed set of variants and
// outbound payloads are tagged with a Kind; the text rendering of the
// legacy protocol exists only inside this package.
package protocol

import "strings"

const (
	PrivatePrefix = "/private"
	ExitCommand   = "/exit"
	UsersPrefix   = "/users "
)

// Inbound is a client to broker payload after classification.
type Inbound interface {
	inbound()
}

// Identify is the first payload of a connection: the requested display name.
type Identify struct {
	Name string
}

type PrivateMessage struct {
	Target string
	Text   string
}

type PublicMessage struct {
	Text string
}

type Exit struct{}

// Malformed is a private command missing its target or its text.
type Malformed struct {
	Raw string
}

func (Identify) inbound()       {}
func (PrivateMessage) inbound() {}
func (PublicMessage) inbound()  {}
func (Exit) inbound()           {}
func (Malformed) inbound()      {}

// ParseIdentify reads the handshake line. Surrounding spaces are not part of a name.
func ParseIdentify(line string) Identify {
	return Identify{Name: strings.TrimSpace(line)}
}

// ParseInbound classifies a line received from an identified client.
func ParseInbound(line string) Inbound {
	switch {
	case line == ExitCommand:
		return Exit{}
	case strings.HasPrefix(line, PrivatePrefix):
		return parsePrivate(line)
	default:
		return PublicMessage{Text: line}
	}
}

// parsePrivate expects "/private <target> <text>".
func parsePrivate(line string) Inbound {
	rest, ok := strings.CutPrefix(line, PrivatePrefix+" ")
	if !ok {
		return Malformed{Raw: line}
	}
	target, text, ok := strings.Cut(rest, " ")
	if !ok || target == "" || text == "" {
		return Malformed{Raw: line}
	}
	return PrivateMessage{Target: target, Text: text}
}

// PrivateCommand renders the client side form of a private message.
func PrivateCommand(target, text string) string {
	return PrivatePrefix + " " + target + " " + text
}
