package protocol

import (
	"bytes"
	"chat-relay/errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineReader_SplitsPayloads(t *testing.T) {
	req := require.New(t)
	reader := NewLineReader(strings.NewReader("alice\r\nhello\nlast"))

	line, err := reader.ReadLine()
	req.NoError(err)
	req.Equal("alice", line)

	line, err = reader.ReadLine()
	req.NoError(err)
	req.Equal("hello", line)

	// Given a final payload without terminator
	line, err = reader.ReadLine()
	req.NoError(err)
	req.Equal("last", line)

	_, err = reader.ReadLine()
	req.ErrorIs(err, io.EOF)
}

func TestLineReader_TooLong(t *testing.T) {
	req := require.New(t)
	reader := NewLineReader(strings.NewReader(strings.Repeat("a", MaxLineLength+10) + "\n"))

	_, err := reader.ReadLine()
	req.ErrorIs(err, errors.ErrLineTooLong)
}

func TestLineReader_RemainingKeepsReadAhead(t *testing.T) {
	req := require.New(t)
	reader := NewLineReader(strings.NewReader("carol\nfirst\nsecond\n"))

	line, err := reader.ReadLine()
	req.NoError(err)
	req.Equal("carol", line)

	rest, err := io.ReadAll(reader.Remaining())
	req.NoError(err)
	req.Equal("first\nsecond\n", string(rest))
}

func TestWriteLine(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	req.NoError(WriteLine(&buf, "Welcome, alice!"))
	req.Equal("Welcome, alice!\n", buf.String())
}
