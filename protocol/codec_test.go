package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncode_LegacyShapes(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local)

	tests := []struct {
		payload  Payload
		expected string
	}{
		{Welcome("alice"), "Welcome, alice!"},
		{NameReassigned("alice", "User042"), "Nickname 'alice' is taken. You've been assigned 'User042'"},
		{NameRejected(), "Nickname cannot contain '*'. Please try again."},
		{UserList([]string{"alice", "bob"}), "/users alice,bob"},
		{Public(at, "alice", "hi"), "[09:05:07] alice: hi"},
		{PrivateIncoming(at, "alice", "hello"), "[09:05:07] [Private] alice: hello"},
		{PrivateConfirm(at, "bob", "hello"), "[09:05:07] [Private to bob]: hello"},
		{UserNotFound("carol"), "User 'carol' not found or offline."},
		{RateLimited(), "You're sending messages too quickly. Please slow down."},
		{Joined(at, "alice"), "[09:05:07] alice has joined the chat!"},
		{Left(at, "alice"), "[09:05:07] alice has left the chat!"},
	}

	for _, tt := range tests {
		t.Run(tt.payload.Kind.String(), func(t *testing.T) {
			req := require.New(t)
			line := Encode(tt.payload)
			req.Equal(tt.expected, line)

			// Then the client side classifies it back to the same kind
			decoded := Decode(line)
			req.Equal(tt.payload.Kind, decoded.Kind)
			req.Equal(line, Encode(decoded))
		})
	}
}

func TestDecode_Fields(t *testing.T) {
	req := require.New(t)

	p := Decode("[10:00:00] [Private] alice: meet: at noon")
	req.Equal(KindPrivateIncoming, p.Kind)
	req.Equal("alice", p.Name)
	req.Equal("meet: at noon", p.Text)
	req.Equal(10, p.At.Hour())

	p = Decode("[10:00:00] [Private to bob]: hi")
	req.Equal(KindPrivateConfirm, p.Kind)
	req.Equal("bob", p.Peer)
	req.Equal("hi", p.Text)

	p = Decode("Nickname 'alice' is taken. You've been assigned 'User123'")
	req.Equal("alice", p.Requested)
	req.Equal("User123", p.Name)

	p = Decode("/users ")
	req.Equal(KindUserList, p.Kind)
	req.Empty(p.Names)
}

func TestDecode_PublicTextLookingLikeNotice(t *testing.T) {
	req := require.New(t)

	// A user typing a join notice is still a public line from that user
	p := Decode("[10:00:00] bob: eve has joined the chat!")
	req.Equal(KindPublic, p.Kind)
	req.Equal("bob", p.Name)
	req.Equal("eve has joined the chat!", p.Text)
}

func TestDecode_Unknown(t *testing.T) {
	req := require.New(t)

	for _, line := range []string{"", "random", "[xx:yy:zz] alice: hi", "[10:00:00] no separator"} {
		p := Decode(line)
		req.Equal(KindUnknown, p.Kind, line)
		req.Equal(line, p.Raw)
		req.Equal(line, Encode(p))
	}
}
