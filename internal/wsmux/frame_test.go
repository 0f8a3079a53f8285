package wsmux

import (
	"bytes"
	"testing"
)

func buildTextFrame(payload string) []byte {
	var b bytes.Buffer
	b.WriteByte(0x80 | opText) // FIN=1, TEXT
	n := len(payload)
	switch {
	case n < 126:
		b.WriteByte(byte(n))
	case n < 1<<16:
		b.WriteByte(126)
		b.WriteByte(byte(n >> 8))
		b.WriteByte(byte(n))
	default:
		t := byte(127)
		b.WriteByte(t)
		for i := 7; i >= 0; i-- {
			b.WriteByte(byte(n >> (8 * i)))
		}
	}
	b.WriteString(payload)
	return b.Bytes()
}

func TestFeedSingleFrameMessage(t *testing.T) {
	d := &frameDecoder{}
	frame := buildTextFrame(`{"s":"BTCUSDT","b":"1","a":"2"}`)

	msgs, err := d.Feed(frame)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if string(msgs[0]) != `{"s":"BTCUSDT","b":"1","a":"2"}` {
		t.Fatalf("got %q", msgs[0])
	}
}

func TestFeedPartialThenComplete(t *testing.T) {
	d := &frameDecoder{}
	frame := buildTextFrame(`{"s":"ETHUSDT"}`)

	msgs, err := d.Feed(frame[:3])
	if err != nil {
		t.Fatalf("Feed (partial): %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages from partial frame, got %d", len(msgs))
	}

	msgs, err = d.Feed(frame[3:])
	if err != nil {
		t.Fatalf("Feed (rest): %v", err)
	}
	if len(msgs) != 1 || string(msgs[0]) != `{"s":"ETHUSDT"}` {
		t.Fatalf("unexpected result: %v", msgs)
	}
}

func TestFeedMultipleFramesInOneChunk(t *testing.T) {
	d := &frameDecoder{}
	chunk := append(buildTextFrame("a"), buildTextFrame("b")...)

	msgs, err := d.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 2 || string(msgs[0]) != "a" || string(msgs[1]) != "b" {
		t.Fatalf("unexpected result: %v", msgs)
	}
}

func TestFeedPingIsConsumedNotReturned(t *testing.T) {
	d := &frameDecoder{}
	ping := []byte{0x80 | opPing, 0x00}
	text := buildTextFrame("hello")

	msgs, err := d.Feed(append(ping, text...))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0]) != "hello" {
		t.Fatalf("unexpected result: %v", msgs)
	}
}

func TestFeedCloseFrameReturnsErr(t *testing.T) {
	d := &frameDecoder{}
	closeFrame := []byte{0x80 | opClose, 0x00}

	_, err := d.Feed(closeFrame)
	if err != ErrConnClosed {
		t.Fatalf("err = %v, want ErrConnClosed", err)
	}
}

func TestFeedFragmentedMessage(t *testing.T) {
	d := &frameDecoder{}

	first := []byte{0x00 | opText, 0x02, 'h', 'e'} // FIN=0
	second := []byte{0x80 | opContinuation, 0x03, 'l', 'l', 'o'} // FIN=1

	msgs, err := d.Feed(first)
	if err != nil {
		t.Fatalf("Feed (first): %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no message before FIN, got %d", len(msgs))
	}

	msgs, err = d.Feed(second)
	if err != nil {
		t.Fatalf("Feed (second): %v", err)
	}
	if len(msgs) != 1 || string(msgs[0]) != "hello" {
		t.Fatalf("unexpected result: %v", msgs)
	}
}

func TestFeedOversizedFrameErrors(t *testing.T) {
	d := &frameDecoder{}
	var hdr [10]byte
	hdr[0] = 0x80 | opBinary
	hdr[1] = 127
	// length field = maxFrameLen+1, big-endian
	big := uint64(maxFrameLen + 1)
	for i := 0; i < 8; i++ {
		hdr[9-i] = byte(big >> (8 * i))
	}

	_, err := d.Feed(hdr[:])
	if err != ErrFrameTooLarge {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}
