package frame

import (
	"strings"

	"github.com/adrianmo/go-nmea"
)

// NMEATap is a passive diagnostic skimmer: it looks for complete
// NMEA-0183 sentences interleaved in a receiver's raw byte stream and
// reports them for logging. It never feeds the fix cache and a
// malformed sentence never blocks or gates the binary decode path.
type NMEATap struct {
	pending string
}

// Feed appends newly read bytes and returns every complete, parseable
// sentence found so far. An incomplete trailing line is held over to
// the next Feed call; a line that fails to parse as NMEA-0183 is
// skipped here and never returned.
func (t *NMEATap) Feed(data []byte) []nmea.Sentence {
	t.pending += string(data)

	var out []nmea.Sentence
	for {
		idx := strings.IndexAny(t.pending, "\r\n")
		if idx == -1 {
			break
		}
		line := strings.TrimSpace(t.pending[:idx])
		t.pending = t.pending[idx+1:]
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}
		s, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}
