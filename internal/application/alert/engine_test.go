package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/persistence/memory"
)

type recordingNotifier struct {
	mu       sync.Mutex
	triggers []*entity.AlertTrigger
}

func (n *recordingNotifier) NotifyAlertTriggered(_ context.Context, t *entity.AlertTrigger) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.triggers = append(n.triggers, t)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.triggers)
}

// switchableEmbedder 可在测试中切换为失败
type switchableEmbedder struct {
	inner einoembedding.Embedder
	mu    sync.Mutex
	fail  bool
}

func (e *switchableEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	e.mu.Lock()
	fail := e.fail
	e.mu.Unlock()
	if fail {
		return nil, errors.New("embedding service unavailable")
	}
	return e.inner.EmbedStrings(ctx, texts, opts...)
}

func (e *switchableEmbedder) setFail(v bool) {
	e.mu.Lock()
	e.fail = v
	e.mu.Unlock()
}

type fixture struct {
	idx       *index.Index
	hashing   *embedding.HashingEmbedder
	emb       *switchableEmbedder
	rules     *memory.AlertRuleRepository
	triggers  *memory.AlertTriggerRepository
	watermark *memory.WatermarkStore
	notifier  *recordingNotifier
	engine    *Engine
	service   *RuleService
	n         int
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	hashing := embedding.NewHashingEmbedder(1024)
	f := &fixture{
		idx:       index.New(memory.NewIndexRecordRepository(), memory.NewVectorRepository()),
		hashing:   hashing,
		emb:       &switchableEmbedder{inner: hashing},
		rules:     memory.NewAlertRuleRepository(),
		triggers:  memory.NewAlertTriggerRepository(),
		watermark: memory.NewWatermarkStore(),
		notifier:  &recordingNotifier{},
	}
	f.engine = NewEngine(f.idx, f.rules, f.triggers, f.watermark, memory.NewTransactor(), f.emb, f.notifier, opts)
	f.service = NewRuleService(f.rules, f.triggers, 0)
	return f
}

func (f *fixture) addRecord(t *testing.T, text string) {
	t.Helper()
	f.n++
	id := fmt.Sprintf("seg-%d", f.n)
	at := time.Date(2025, 3, 1, 10, f.n, 0, 0, time.UTC)
	seg := entity.NewSegment(id, "cam-1", "rtsp://cam-1/live", "rec-1", int64(f.n), at, "/data/"+id+".mp4")
	_ = seg.Close(time.Minute)
	_ = seg.MarkUploaded(id+".mp4", "memory://"+id+".mp4")
	_ = seg.MarkDescribed(text)
	vec, err := embedding.Embed(context.Background(), f.hashing, text)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.idx.Put(context.Background(), entity.NewIndexRecord(seg, vec, time.UTC)); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) addRule(t *testing.T, query string, enabled bool) *entity.AlertRule {
	t.Helper()
	rule, err := f.service.Create(context.Background(), query, &enabled)
	if err != nil {
		t.Fatal(err)
	}
	return rule
}

func (f *fixture) evaluate(t *testing.T) *Result {
	t.Helper()
	res, err := f.engine.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return res
}

func (f *fixture) triggerCount(t *testing.T, id string) int64 {
	t.Helper()
	rule, err := f.service.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return rule.TriggerCount
}

func TestEvaluateHallwayScenario(t *testing.T) {
	f := newFixture(t, Options{})
	rule := f.addRule(t, "person in hallway", true)
	f.addRecord(t, "A person walks through the hallway.")
	f.addRecord(t, "Empty parking lot at night")
	f.addRecord(t, "Delivery truck backs into the loading dock")

	res := f.evaluate(t)
	if res.Records != 3 || res.Triggers != 1 || res.Watermark != 3 {
		t.Fatalf("Evaluate() = %+v", res)
	}
	if got := f.triggerCount(t, rule.ID); got != 1 {
		t.Errorf("trigger_count = %d, want 1", got)
	}

	history, err := f.service.History(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].SegmentID != "seg-1" || history[0].RuleQuery != "person in hallway" {
		t.Fatalf("history = %+v", history)
	}
	if history[0].Snippet != "A person walks through the hallway." || history[0].Location != "memory://seg-1.mp4" {
		t.Errorf("trigger = %+v", history[0])
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.count())
	}

	// 已追平时不再产生触发
	if res := f.evaluate(t); res.Records != 0 || res.Triggers != 0 {
		t.Errorf("second Evaluate() = %+v", res)
	}
}

func TestEvaluateSameBatchTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	rule := f.addRule(t, "person in hallway", true)
	f.addRecord(t, "A person walks through the hallway.")

	f.evaluate(t)
	// 模拟推进水位线前崩溃
	if err := f.watermark.Set(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	res := f.evaluate(t)

	if res.Records != 1 || res.Triggers != 0 {
		t.Errorf("re-evaluation = %+v", res)
	}
	if got := f.triggerCount(t, rule.ID); got != 1 {
		t.Errorf("trigger_count = %d, want 1", got)
	}
	if history, _ := f.service.History(context.Background(), rule.ID, 0); len(history) != 1 {
		t.Errorf("history = %d entries, want 1", len(history))
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.count())
	}
}

func TestEvaluateOnlyEnabledRules(t *testing.T) {
	f := newFixture(t, Options{})
	rule := f.addRule(t, "person in hallway", false)
	f.addRecord(t, "A person walks through the hallway.")

	if res := f.evaluate(t); res.Triggers != 0 {
		t.Fatalf("disabled rule triggered: %+v", res)
	}

	on := true
	if _, err := f.service.Update(context.Background(), rule.ID, RuleUpdate{Enabled: &on}); err != nil {
		t.Fatal(err)
	}
	// 启用只影响之后的批次
	if res := f.evaluate(t); res.Triggers != 0 {
		t.Errorf("already evaluated batch triggered: %+v", res)
	}

	f.addRecord(t, "Another person running down the hallway")
	if res := f.evaluate(t); res.Triggers != 1 {
		t.Errorf("enabled rule on new batch = %+v", res)
	}
	if got := f.triggerCount(t, rule.ID); got != 1 {
		t.Errorf("trigger_count = %d, want 1", got)
	}
}

func TestEvaluateFailureKeepsWatermark(t *testing.T) {
	f := newFixture(t, Options{})
	f.addRule(t, "person in hallway", true)
	f.addRecord(t, "A person walks through the hallway.")

	f.emb.setFail(true)
	if _, err := f.engine.Evaluate(context.Background()); err == nil {
		t.Fatal("Evaluate() should fail when embedding fails")
	}
	if wm, _ := f.watermark.Get(context.Background()); wm != 0 {
		t.Fatalf("watermark = %d after failure, want 0", wm)
	}

	f.emb.setFail(false)
	if res := f.evaluate(t); res.Triggers != 1 || res.Watermark != 1 {
		t.Errorf("retry Evaluate() = %+v", res)
	}
}

func TestEvaluateSkipsWhenLocked(t *testing.T) {
	f := newFixture(t, Options{})
	f.addRecord(t, "A person walks through the hallway.")

	unlock, ok, err := f.watermark.TryLock(context.Background())
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	res := f.evaluate(t)
	if !res.Skipped {
		t.Errorf("Evaluate() = %+v, want skipped", res)
	}
	_ = unlock(context.Background())

	if res := f.evaluate(t); res.Skipped || res.Watermark != 1 {
		t.Errorf("Evaluate() after unlock = %+v", res)
	}
}

func TestTickDrainsBatches(t *testing.T) {
	tests := []struct {
		name        string
		maxBatches  int
		wantBatches int
		wantMark    int64
	}{
		{"drains backlog", 10, 3, 5},
		{"stops at per-tick cap", 2, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{BatchSize: 2, MaxBatchesPerTick: tt.maxBatches})
			f.addRule(t, "person in hallway", true)
			for i := 0; i < 5; i++ {
				f.addRecord(t, fmt.Sprintf("person %d in the hallway", i))
			}

			if got := f.engine.Tick(context.Background()); got != tt.wantBatches {
				t.Errorf("Tick() = %d batches, want %d", got, tt.wantBatches)
			}
			if wm, _ := f.watermark.Get(context.Background()); wm != tt.wantMark {
				t.Errorf("watermark = %d, want %d", wm, tt.wantMark)
			}
		})
	}
}
