package observation

import "bytes"

var header = []byte{headerHi, headerLo}

// ParseStream extracts every complete observation present in buf, in
// arrival order, and returns the unconsumed remainder. The caller owns
// cross-read buffering: prepend the remainder to the next chunk before
// calling again.
//
// Malformed input is never an error. The meter emits messages with no
// length prefix or escaping, so recovery from a torn or corrupted stream
// is a byte-at-a-time rescan for the header constant: a header pair that
// turns out not to start a valid message advances the cursor by one byte,
// not a whole message, since the real boundary may sit inside the bad
// window.
func ParseStream(buf []byte) ([]Observation, []byte) {
	var observations []Observation
	for {
		start := bytes.Index(buf, header)
		if start < 0 {
			// No header anywhere: everything is noise.
			return observations, nil
		}
		buf = buf[start:]
		if len(buf) < MessageSize {
			// Partial message; keep it verbatim for the next read.
			return observations, buf
		}
		o, err := Decode(buf[:MessageSize])
		if err != nil {
			buf = buf[1:]
			continue
		}
		observations = append(observations, o)
		buf = buf[MessageSize:]
	}
}
