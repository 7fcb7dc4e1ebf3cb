package channels

import (
	"strings"
	"testing"

	"github.com/cmdlink/cmdlink/internal/bus"
)

func TestIsAllowed(t *testing.T) {
	b := bus.NewMessageBus(1)

	open := NewBase("test", b, nil)
	if !open.IsAllowed("anyone") {
		t.Error("empty allowlist must allow all")
	}

	restricted := NewBase("test", b, []string{"42", "alice"})
	if !restricted.IsAllowed("42") {
		t.Error("listed id must be allowed")
	}
	if !restricted.IsAllowed("42|bob") {
		t.Error("id part of id|username must match")
	}
	if !restricted.IsAllowed("7|alice") {
		t.Error("username part of id|username must match")
	}
	if restricted.IsAllowed("7|bob") {
		t.Error("unlisted sender must be denied")
	}
}

func TestHandleMessage_PublishesInbound(t *testing.T) {
	b := bus.NewMessageBus(1)
	base := NewBase("telegram", b, nil)

	base.HandleMessage("7", "42", "/rmd ls")

	select {
	case msg := <-b.Inbound:
		if msg.Origin.Channel != "telegram" || msg.Origin.ChatID != "42" || msg.Origin.SenderID != "7" {
			t.Errorf("origin = %+v", msg.Origin)
		}
		if msg.Content != "/rmd ls" {
			t.Errorf("content = %q", msg.Content)
		}
	default:
		t.Fatal("no inbound message published")
	}
}

func TestHandleMessage_DeniedSenderPublishesNothing(t *testing.T) {
	b := bus.NewMessageBus(1)
	base := NewBase("telegram", b, []string{"42"})

	base.HandleMessage("7", "7", "/rmd ls")

	select {
	case msg := <-b.Inbound:
		t.Errorf("denied sender leaked a message: %+v", msg)
	default:
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short content: %v", got)
	}

	content := strings.Repeat("word ", 100) // 500 chars
	chunks := splitMessage(content, 120)
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 120 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c))
		}
	}
	// Splitting prefers breaking at whitespace: no chunk starts mid-word
	// with leading spaces.
	for i, c := range chunks {
		if strings.HasPrefix(c, " ") {
			t.Errorf("chunk %d has leading space: %q", i, c)
		}
	}
}
