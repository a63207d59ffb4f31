package protocol

import (
	"fmt"
	"time"
)

// ClockLayout is the time of day printed in front of chat lines.
const ClockLayout = "15:04:05"

type Kind int

const (
	KindUnknown Kind = iota
	KindWelcome
	KindNameReassigned
	KindNameRejected
	KindUserList
	KindPublic
	KindPrivateIncoming
	KindPrivateConfirm
	KindUserNotFound
	KindRateLimited
	KindJoined
	KindLeft
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindWelcome:         "welcome",
	KindNameReassigned:  "name_reassigned",
	KindNameRejected:    "name_rejected",
	KindUserList:        "user_list",
	KindPublic:          "public",
	KindPrivateIncoming: "private_incoming",
	KindPrivateConfirm:  "private_confirm",
	KindUserNotFound:    "user_not_found",
	KindRateLimited:     "rate_limited",
	KindJoined:          "joined",
	KindLeft:            "left",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Payload is a broker to client message.
// Name is the subject of the payload: the welcomed or assigned name, the
// sender of a chat line, the user who joined or left, the missing user.
type Payload struct {
	Kind      Kind
	At        time.Time
	Name      string
	Requested string
	Peer      string
	Text      string
	Names     []string
	Raw       string
}

func Welcome(name string) Payload {
	return Payload{Kind: KindWelcome, Name: name}
}

func NameReassigned(requested, assigned string) Payload {
	return Payload{Kind: KindNameReassigned, Requested: requested, Name: assigned}
}

func NameRejected() Payload {
	return Payload{Kind: KindNameRejected}
}

func UserList(names []string) Payload {
	return Payload{Kind: KindUserList, Names: names}
}

func Public(at time.Time, sender, text string) Payload {
	return Payload{Kind: KindPublic, At: at, Name: sender, Text: text}
}

func PrivateIncoming(at time.Time, sender, text string) Payload {
	return Payload{Kind: KindPrivateIncoming, At: at, Name: sender, Text: text}
}

func PrivateConfirm(at time.Time, recipient, text string) Payload {
	return Payload{Kind: KindPrivateConfirm, At: at, Peer: recipient, Text: text}
}

func UserNotFound(name string) Payload {
	return Payload{Kind: KindUserNotFound, Name: name}
}

func RateLimited() Payload {
	return Payload{Kind: KindRateLimited}
}

func Joined(at time.Time, name string) Payload {
	return Payload{Kind: KindJoined, At: at, Name: name}
}

func Left(at time.Time, name string) Payload {
	return Payload{Kind: KindLeft, At: at, Name: name}
}
