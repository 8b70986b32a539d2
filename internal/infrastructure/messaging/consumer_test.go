package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"video-sentinel/pkg/logger"
)

func TestDecode(t *testing.T) {
	msg, err := NewMessage("m-1", TypeSegmentClosed, "cam-1", map[string]string{"segment_id": "seg-1"})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(msg)

	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{"valid", map[string]interface{}{"data": string(raw)}, false},
		{"missing data", map[string]interface{}{"other": "x"}, true},
		{"not json", map[string]interface{}{"data": "{"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(redis.XMessage{ID: "1-0", Values: tt.values})
			if (err != nil) != tt.wantErr {
				t.Fatalf("decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (got.ID != "m-1" || got.StreamID != "cam-1") {
				t.Errorf("decode() = %+v", got)
			}
		})
	}
}

func TestWithMessageContext(t *testing.T) {
	msg, _ := NewMessage("m-1", TypeSegmentClosed, "cam-1", nil)
	msg.SetMetadata("request_id", "req-9")

	ctx := withMessageContext(context.Background(), msg)
	if ctx.Value(logger.StreamIDKey) != "cam-1" || ctx.Value(logger.RequestIDKey) != "req-9" {
		t.Errorf("context missing message fields")
	}
	if ctx.Value(logger.TraceIDKey) != nil {
		t.Error("trace_id should be unset")
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{Stream: StreamSegmentClosed, Group: ConsumerGroupIngest})
	if c.retryLimit != 3 || c.blockTimeout != 5*time.Second || c.claimInterval != 30*time.Second {
		t.Errorf("defaults = %d, %v, %v", c.retryLimit, c.blockTimeout, c.claimInterval)
	}
	if c.reclaimIdle != 5*time.Minute {
		t.Errorf("reclaimIdle = %v, want 5m", c.reclaimIdle)
	}

	c = NewConsumer(nil, ConsumerConfig{Backoff: BackoffConfig{Initial: time.Second, Max: 10 * time.Minute, Multiplier: 2}})
	if c.reclaimIdle != 20*time.Minute {
		t.Errorf("reclaimIdle = %v, want twice the max backoff", c.reclaimIdle)
	}

	// 未启动时 Stop 直接返回
	c.Stop()
}
