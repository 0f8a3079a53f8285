package ingest

// Field key probes, matched against a 4-byte window of the frame buffer.
// Binance's bookTicker payload uses single-letter keys; "b"/"a" are the
// best bid/ask price fields, while "B"/"A" (quantities) differ by case and
// so never collide with these probes.
var (
	keyS = [4]byte{'"', 's', '"', ':'}
	keyB = [4]byte{'"', 'b', '"', ':'}
	keyA = [4]byte{'"', 'a', '"', ':'}
)

// fields holds zero-copy references into the frame buffer for the three
// values the ingest pipeline needs out of one bookTicker message.
type fields struct {
	Symbol []byte
	Bid    []byte
	Ask    []byte
}

// scanFields walks buf once looking for the "s"/"b"/"a" key tags and slices
// out each value between its surrounding quotes. It never allocates: every
// field is a subslice of buf.
func scanFields(buf []byte) fields {
	var f fields
	end := len(buf) - 4

	for i := 0; i <= end; i++ {
		tag := [4]byte{buf[i], buf[i+1], buf[i+2], buf[i+3]}

		switch tag {
		case keyS:
			if v, next, ok := quotedValue(buf, i+4); ok {
				f.Symbol = v
				i = next
			}
		case keyB:
			if v, next, ok := quotedValue(buf, i+4); ok {
				f.Bid = v
				i = next
			}
		case keyA:
			if v, next, ok := quotedValue(buf, i+4); ok {
				f.Ask = v
				i = next
			}
		}
	}

	return f
}

// quotedValue expects buf[i] to be the opening '"' of a quoted value and
// returns the bytes between the quotes along with the index of the closing
// quote. ok is false if no closing quote is found before the buffer ends.
func quotedValue(buf []byte, i int) (value []byte, closeIdx int, ok bool) {
	if i >= len(buf) || buf[i] != '"' {
		return nil, 0, false
	}
	for j := i + 1; j < len(buf); j++ {
		if buf[j] == '"' {
			return buf[i+1 : j], j, true
		}
	}
	return nil, 0, false
}
