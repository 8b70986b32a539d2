package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/persistence/memory"
	"video-sentinel/internal/infrastructure/vlm"
	apperrors "video-sentinel/pkg/errors"
)

var base = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	idx       *index.Index
	emb       *embedding.HashingEmbedder
	describer *vlm.Fake
	engine    *Engine
	n         int
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		idx:       index.New(memory.NewIndexRecordRepository(), memory.NewVectorRepository()),
		emb:       embedding.NewHashingEmbedder(1024),
		describer: vlm.NewFake(),
	}
	opts.Location = time.UTC
	f.engine = NewEngine(f.idx, f.emb, f.describer, opts)
	f.engine.now = func() time.Time { return base }
	return f
}

// add 写入一条已描述的索引记录，返回其 location
func (f *fixture) add(t *testing.T, text string, at time.Time, d time.Duration) string {
	t.Helper()
	f.n++
	id := fmt.Sprintf("seg-%d", f.n)
	seg := entity.NewSegment(id, "cam-1", "rtsp://cam-1/live", "rec-1", int64(f.n), at, "/data/cam-1/"+id+".mp4")
	loc := "memory://cam-1/" + id + ".mp4"
	for _, step := range []func() error{
		func() error { return seg.Close(d) },
		func() error { return seg.MarkUploaded("cam-1/"+id+".mp4", loc) },
		func() error { return seg.MarkDescribed(text) },
	} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	vec, err := embedding.Embed(context.Background(), f.emb, text)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.idx.Put(context.Background(), entity.NewIndexRecord(seg, vec, time.UTC)); err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestFindClips(t *testing.T) {
	f := newFixture(t, Options{})
	older := f.add(t, "person walks hallway", base.Add(-2*time.Hour), time.Minute)
	newer := f.add(t, "person walks hallway", base.Add(-time.Hour), time.Minute)
	exact := f.add(t, "person hallway", base.Add(-3*time.Hour), time.Minute)
	f.add(t, "empty parking lot night", base.Add(-time.Hour), time.Minute)
	f.add(t, "person hallway", base.Add(-48*time.Hour), time.Minute)

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"default k", 0, []string{exact, newer, older}},
		{"k limits results", 2, []string{exact, newer}},
		{"k clamped to max", 100, []string{exact, newer, older}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clips, err := f.engine.FindClips(context.Background(), Input{Query: "person in hallway", NResults: tt.n})
			if err != nil {
				t.Fatalf("FindClips() error = %v", err)
			}
			if len(clips) != len(tt.want) {
				t.Fatalf("clips = %d, want %d", len(clips), len(tt.want))
			}
			for i, c := range clips {
				if c.Record.Location != tt.want[i] {
					t.Errorf("clip %d = %s, want %s", i, c.Record.Location, tt.want[i])
				}
				if i > 0 && c.Distance < clips[i-1].Distance {
					t.Errorf("clips not ordered by distance: %v < %v", c.Distance, clips[i-1].Distance)
				}
			}
		})
	}
}

func TestFindClipsTargetDate(t *testing.T) {
	f := newFixture(t, Options{})
	day1 := f.add(t, "forklift in warehouse aisle", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Minute)
	f.add(t, "forklift in warehouse aisle", time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC), time.Minute)

	clips, err := f.engine.FindClips(context.Background(), Input{Query: "forklift", TargetDate: "2025-03-01"})
	if err != nil {
		t.Fatalf("FindClips() error = %v", err)
	}
	if len(clips) != 1 || clips[0].Record.Location != day1 {
		t.Errorf("clips = %+v", clips)
	}

	empty, err := f.engine.FindClips(context.Background(), Input{Query: "forklift", TargetDate: "2024-12-31"})
	if err != nil || len(empty) != 0 {
		t.Errorf("FindClips() on empty day = %v, %v", empty, err)
	}
}

func TestFindClipsValidation(t *testing.T) {
	f := newFixture(t, Options{})
	tests := []struct {
		name string
		in   Input
	}{
		{"empty query", Input{Query: "  "}},
		{"bad date", Input{Query: "person", TargetDate: "03/01/2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.FindClips(context.Background(), tt.in)
			if apperrors.CodeOf(err) != apperrors.CodeValidation {
				t.Errorf("FindClips() error = %v, want validation", err)
			}
		})
	}
}

func TestAnalyzeItemizesErrors(t *testing.T) {
	f := newFixture(t, Options{AnalysisProvider: "qwen-vl-flash"})
	var locs []string
	for i := 0; i < 5; i++ {
		locs = append(locs, f.add(t, "delivery truck at loading dock", base.Add(-time.Duration(i+1)*time.Minute), time.Minute))
	}
	f.describer.Script(locs[2], vlm.Reply{Err: apperrors.Transient(errors.New("503"), "describe failed")})

	items, err := f.engine.Analyze(context.Background(), Input{Query: "is the truck at the loading dock?"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}

	var ok, failed int
	for _, it := range items {
		switch {
		case it.Error != "" && it.Analysis == "":
			failed++
			if it.Location != locs[2] {
				t.Errorf("failed item = %s, want %s", it.Location, locs[2])
			}
		case it.Analysis != "" && it.Error == "":
			ok++
		default:
			t.Errorf("item has both or neither: %+v", it)
		}
	}
	if ok != 4 || failed != 1 {
		t.Errorf("ok = %d, failed = %d", ok, failed)
	}

	for _, call := range f.describer.Calls() {
		if call.Prompt != "is the truck at the loading dock?" || call.Provider != "qwen-vl-flash" {
			t.Errorf("describe request = %+v", call)
		}
	}
}

func TestAnalyzeUsesStricterDistance(t *testing.T) {
	f := newFixture(t, Options{AnalysisMaxDistance: 0.05})
	exact := f.add(t, "person hallway", base.Add(-time.Hour), time.Minute)
	f.add(t, "person walks hallway", base.Add(-time.Hour), time.Minute)

	clips, err := f.engine.FindClips(context.Background(), Input{Query: "person hallway"})
	if err != nil || len(clips) != 2 {
		t.Fatalf("FindClips() = %d clips, %v", len(clips), err)
	}
	items, err := f.engine.Analyze(context.Background(), Input{Query: "person hallway"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(items) != 1 || items[0].Location != exact {
		t.Errorf("items = %+v", items)
	}
}

func TestAvailableDates(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(t, "gate opens", time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), time.Minute)
	f.add(t, "gate closes", time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), time.Minute)
	f.add(t, "gate opens", time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC), time.Minute)

	dates, err := f.engine.AvailableDates(context.Background())
	if err != nil {
		t.Fatalf("AvailableDates() error = %v", err)
	}
	if len(dates) != 2 || dates[0] != "2025-03-02" || dates[1] != "2025-03-01" {
		t.Errorf("dates = %v", dates)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, Options{StatsMaxMinutes: 10})
	f.add(t, "gate opens", base.Add(-time.Hour), time.Minute)
	f.add(t, "gate closes", base.Add(-2*time.Hour), 30*time.Second)
	f.add(t, "gate opens", base.Add(-30*time.Hour), time.Minute)

	st, err := f.engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := Stats{ChunksProcessed: 2, TotalMinutes: 1.5, MaxMinutes: 10, ProgressPercent: 15}
	if *st != want {
		t.Errorf("Stats() = %+v, want %+v", *st, want)
	}

	for i := 0; i < 12; i++ {
		f.add(t, "busy", base.Add(-time.Duration(i+3)*time.Minute), time.Minute)
	}
	st, _ = f.engine.Stats(context.Background())
	if st.ProgressPercent != 100 {
		t.Errorf("progress = %v, want capped at 100", st.ProgressPercent)
	}
}
