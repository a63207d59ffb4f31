package protocol

import (
	"bufio"
	"chat-relay/errors"
	stderrors "errors"
	"io"
	"strings"
)

// MaxLineLength bounds a single payload, terminator included.
const MaxLineLength = 4096

// LineReader splits a byte stream into newline terminated payloads.
// A final payload without terminator is still returned before io.EOF.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, MaxLineLength)}
}

func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadSlice('\n')
	switch {
	case err == nil:
	case stderrors.Is(err, bufio.ErrBufferFull):
		return "", errors.ErrLineTooLong
	case stderrors.Is(err, io.EOF) && len(line) > 0:
	default:
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// Remaining exposes the underlying buffered stream, including bytes read
// ahead of the last returned line.
func (l *LineReader) Remaining() io.Reader {
	return l.r
}

// WriteLine writes one payload and its terminator in a single call.
func WriteLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}
