package bus

import (
	"context"
	"testing"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/realtime"
)

func TestMemoryBusFanout(t *testing.T) {
	b, err := New(logger.Nop(), RedisConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	var got []realtime.Message
	ctx := context.Background()
	if err := b.StartForwarder(ctx, func(m realtime.Message) { got = append(got, m) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, realtime.Message{Channel: "u1", Event: realtime.EventJobDone}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].Event != realtime.EventJobDone {
		t.Fatalf("got=%+v", got)
	}
}

func TestRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(logger.Nop(), RedisConfig{}); err == nil {
		t.Fatalf("expected error without address")
	}
}
