package llm

import (
	"bufio"
	"io"
	"strings"
)

const maxLineBytes = 1 << 20

// lineReader yields the payload lines of a streamed HTTP body. For server-sent
// events only "data:" lines are returned, with the prefix removed.
type lineReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	sse     bool
}

func newLineReader(body io.ReadCloser, sse bool) *lineReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &lineReader{body: body, scanner: scanner, sse: sse}
}

// next returns the next non-empty payload line, or io.EOF
func (r *lineReader) next() (string, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		if r.sse {
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			line = strings.TrimSpace(data)
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *lineReader) close() error {
	return r.body.Close()
}
