package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFrameReaderYieldsDataFrames(t *testing.T) {
	body := "data: {\"event\":\"message\",\"answer\":\"你好\"}\n\n" +
		": keepalive\n" +
		"event: ping\n" +
		"data: {\"event\":\"message_end\"}\n\n"

	frames := NewFrameReader(strings.NewReader(body))

	first, err := frames.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != `{"event":"message","answer":"你好"}` {
		t.Fatalf("unexpected first frame: %s", first)
	}

	second, err := frames.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second) != `{"event":"message_end"}` {
		t.Fatalf("unexpected second frame: %s", second)
	}

	if _, err := frames.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestFrameReaderSkipsEmptyPayload(t *testing.T) {
	frames := NewFrameReader(strings.NewReader("data: \ndata:   \ndata: {\"event\":\"message\"}\n"))

	frame, err := frames.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != `{"event":"message"}` {
		t.Fatalf("unexpected frame: %s", frame)
	}
}

func TestFrameReaderCopiesScannerBuffer(t *testing.T) {
	frames := NewFrameReader(strings.NewReader("data: {\"a\":1}\ndata: {\"b\":2}\n"))

	first, _ := frames.Next()
	snapshot := string(first)
	frames.Next()

	if string(first) != snapshot {
		t.Fatalf("frame mutated after subsequent read: %s", first)
	}
}

func TestFrameReaderEmptyStream(t *testing.T) {
	frames := NewFrameReader(strings.NewReader(""))
	if _, err := frames.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
