package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/slighter12/vault-mcp-go/logger"
)

func TestMultiFansOut(t *testing.T) {
	var a, b Recorder
	sink := Multi(&a, nil, &b)
	sink.Notify(Notice{Level: LevelInfo, Key: "server.started", Message: "started"})

	if got := a.Keys(); len(got) != 1 || got[0] != "server.started" {
		t.Fatalf("unexpected keys on first recorder: %v", got)
	}
	if got := b.Notices(); len(got) != 1 || got[0].Message != "started" {
		t.Fatalf("unexpected notices on second recorder: %v", got)
	}

	a.Reset()
	if len(a.Notices()) != 0 {
		t.Fatal("expected reset recorder to be empty")
	}
}

func TestLogSinkUsesLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := logger.InitWithConsole(buf, slog.LevelDebug, logger.FormatText); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	LogSink{}.Notify(Notice{Level: LevelError, Key: "server.portInUse", Message: "Port 1 is already in use"})

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "notice=server.portInUse") {
		t.Fatalf("unexpected log output %q", out)
	}
}
