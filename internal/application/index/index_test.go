package index_test

import (
	"context"
	"testing"
	"time"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/infrastructure/persistence/memory"
	apperrors "video-sentinel/pkg/errors"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func record(id string, at time.Time, vec []float32) *entity.IndexRecord {
	seg := entity.NewSegment(id, "cam-1", "rtsp://cam-1/live", "rec-1", 1, at, "/data/"+id+".mp4")
	_ = seg.Close(time.Minute)
	_ = seg.MarkUploaded(id+".mp4", "memory://"+id+".mp4")
	_ = seg.MarkDescribed("clip " + id)
	return entity.NewIndexRecord(seg, vec, time.UTC)
}

func newIndex(t *testing.T, recs ...*entity.IndexRecord) *index.Index {
	t.Helper()
	idx := index.New(memory.NewIndexRecordRepository(), memory.NewVectorRepository())
	for _, r := range recs {
		if ok, err := idx.Put(context.Background(), r); err != nil || !ok {
			t.Fatalf("Put(%s) = %v, %v", r.SegmentID, ok, err)
		}
	}
	return idx
}

func TestPutOncePerSegment(t *testing.T) {
	idx := newIndex(t, record("seg-1", t0, []float32{1, 0}))

	ok, err := idx.Put(context.Background(), record("seg-1", t0, []float32{0, 1}))
	if err != nil || ok {
		t.Fatalf("second Put() = %v, %v, want false, nil", ok, err)
	}

	_, err = idx.Put(context.Background(), record("seg-2", t0, nil))
	if !apperrors.IsPermanent(err) {
		t.Errorf("Put() without embedding error = %v, want permanent", err)
	}

	recs, err := idx.ListAfter(context.Background(), 0, 10)
	if err != nil || len(recs) != 1 {
		t.Errorf("ListAfter() = %d records, %v", len(recs), err)
	}
}

func TestSearch(t *testing.T) {
	idx := newIndex(t,
		record("exact-old", t0, []float32{1, 0}),
		record("exact-new", t0.Add(time.Hour), []float32{2, 0}),
		record("near", t0.Add(2*time.Hour), []float32{0.8, 0.6}),
		record("far", t0.Add(3*time.Hour), []float32{0, 1}),
	)

	tests := []struct {
		name string
		q    index.SearchQuery
		want []string
	}{
		{"ordered by distance then newest", index.SearchQuery{Limit: 10}, []string{"exact-new", "exact-old", "near", "far"}},
		{"limit", index.SearchQuery{Limit: 2}, []string{"exact-new", "exact-old"}},
		{"max distance", index.SearchQuery{Limit: 10, MaxDistance: 0.5}, []string{"exact-new", "exact-old", "near"}},
		{"time window", index.SearchQuery{Limit: 10, From: t0.Add(30 * time.Minute), To: t0.Add(3 * time.Hour)}, []string{"exact-new", "near"}},
		{"segment ids", index.SearchQuery{Limit: 1, SegmentIDs: []string{"far", "near"}}, []string{"near"}},
		{"zero limit", index.SearchQuery{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.q
			q.Vector = []float32{1, 0}
			hits, err := idx.Search(context.Background(), q)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(hits) != len(tt.want) {
				t.Fatalf("Search() = %d hits, want %d", len(hits), len(tt.want))
			}
			for i, h := range hits {
				if h.Record.SegmentID != tt.want[i] {
					t.Errorf("hit %d = %s, want %s", i, h.Record.SegmentID, tt.want[i])
				}
			}
		})
	}
}

func TestClear(t *testing.T) {
	idx := newIndex(t, record("seg-1", t0, []float32{1, 0}), record("seg-2", t0, []float32{0, 1}))

	n, err := idx.Clear(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Clear() = %d, %v", n, err)
	}
	hits, err := idx.Search(context.Background(), index.SearchQuery{Vector: []float32{1, 0}, Limit: 5})
	if err != nil || len(hits) != 0 {
		t.Errorf("Search() after clear = %d hits, %v", len(hits), err)
	}
}
