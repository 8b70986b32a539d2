package entity

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSegment() *Segment {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewSegment("seg-1", "lobby", "rtsp://cam/live", "rec-1", 0, start, "recordings/chunk.mp4")
}

func TestSegmentLifecycle(t *testing.T) {
	seg := newTestSegment()

	if err := seg.Close(90 * time.Second); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := seg.EndedAt(); !got.Equal(seg.StartedAt.Add(90 * time.Second)) {
		t.Errorf("EndedAt() = %v", got)
	}
	if err := seg.MarkUploaded("chunk.mp4", "https://cdn/chunk.mp4"); err != nil {
		t.Fatalf("MarkUploaded() error = %v", err)
	}
	if err := seg.MarkDescribed("a person walks"); err != nil {
		t.Fatalf("MarkDescribed() error = %v", err)
	}
	if err := seg.MarkIndexed(); err != nil {
		t.Fatalf("MarkIndexed() error = %v", err)
	}
	if seg.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal state")
	}
	if err := seg.Fail(errors.New("late")); err == nil {
		t.Error("terminal segment must not be mutated")
	}
}

func TestSegmentInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *Segment) error
	}{
		{"upload before close", func(s *Segment) error { return s.MarkUploaded("k", "u") }},
		{"describe before upload", func(s *Segment) error {
			_ = s.Close(time.Minute)
			return s.MarkDescribed("d")
		}},
		{"index before describe", func(s *Segment) error {
			_ = s.Close(time.Minute)
			_ = s.MarkUploaded("k", "u")
			return s.MarkIndexed()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(newTestSegment()); err == nil {
				t.Error("expected transition error")
			}
		})
	}
}

func TestSegmentFailFromAnyActiveState(t *testing.T) {
	seg := newTestSegment()
	_ = seg.Close(time.Minute)
	_ = seg.MarkUploaded("k", "u")

	if err := seg.Fail(errors.New("describe exhausted")); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if seg.State != SegmentStateFailed || seg.LastError != "describe exhausted" {
		t.Errorf("state = %s, last error = %q", seg.State, seg.LastError)
	}
}

func TestNewIndexRecordDerivesDate(t *testing.T) {
	seg := newTestSegment()
	seg.StartedAt = time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	seg.Description = "empty corridor"

	tokyo := time.FixedZone("JST", 9*3600)
	rec := NewIndexRecord(seg, []float32{1, 0}, tokyo)

	if rec.CapturedDate != "2025-03-02" {
		t.Errorf("CapturedDate = %s, want 2025-03-02", rec.CapturedDate)
	}
	if rec.SegmentID != seg.ID || rec.Description != seg.Description {
		t.Errorf("record = %+v", rec)
	}
}

func TestAlertRuleValidation(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr error
	}{
		{"trimmed", "  person in hallway ", "person in hallway", nil},
		{"empty", "   ", "", ErrEmptyAlertQuery},
		{"too long", strings.Repeat("a", MaxAlertQueryLength+1), "", ErrAlertQueryTooLong},
		{"multibyte at limit", strings.Repeat("走", MaxAlertQueryLength), strings.Repeat("走", MaxAlertQueryLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewAlertRule("r1", tt.query, true)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewAlertRule() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && rule.Query != tt.want {
				t.Errorf("Query = %q, want %q", rule.Query, tt.want)
			}
		})
	}
}

func TestNewAlertTriggerTruncatesSnippet(t *testing.T) {
	rule, _ := NewAlertRule("r1", "person in hallway", true)
	rec := &IndexRecord{SegmentID: "seg-1", Description: strings.Repeat("x", 250)}

	trig := NewAlertTrigger("t1", rule, rec, 0.3, time.Now())

	if got := len(trig.Snippet); got != SnippetLength {
		t.Errorf("snippet length = %d, want %d", got, SnippetLength)
	}
	if trig.RuleID != "r1" || trig.SegmentID != "seg-1" {
		t.Errorf("trigger = %+v", trig)
	}
}
