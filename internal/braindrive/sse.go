package braindrive

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventSize bounds a single server-sent event line.
const maxEventSize = 1024 * 1024

// sseReader reads the data payload of server-sent events.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseReader{scanner: s}
}

// Next returns the data of the next event, joining multi-line data with "\n".
// It returns io.EOF when the stream ends.
func (r *sseReader) Next() ([]byte, error) {
	var data [][]byte
	for r.scanner.Scan() {
		line := bytes.TrimRight(r.scanner.Bytes(), "\r")
		if len(line) == 0 {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if bytes.HasPrefix(line, []byte(":")) {
			continue
		}
		if v, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			data = append(data, bytes.Clone(bytes.TrimPrefix(v, []byte(" "))))
		}
		// event:, id: and retry: carry nothing the client uses.
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}
