package llm

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// sseDecoder pulls Server-Sent Events from a response body one event at a
// time. Comment lines are skipped; multi-line data fields are joined with
// "\n"; a trailing event without a blank line is still delivered.
type sseDecoder struct {
	br *bufio.Reader
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	return &sseDecoder{br: bufio.NewReaderSize(r, 64<<10)}
}

// next returns the next event. It returns io.EOF only when the body ended
// cleanly between events; any other read error is returned as is.
func (d *sseDecoder) next() (event, data string, err error) {
	var dataLines []string
	for {
		line, rerr := d.br.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return "", "", rerr
		}
		eof := errors.Is(rerr, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(dataLines) > 0 {
				return event, strings.Join(dataLines, "\n"), nil
			}
			event = ""
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if eof {
			if len(dataLines) > 0 {
				return event, strings.Join(dataLines, "\n"), nil
			}
			return "", "", io.EOF
		}
	}
}
