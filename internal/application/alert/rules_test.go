package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/infrastructure/persistence/memory"
	apperrors "video-sentinel/pkg/errors"
)

func TestRuleServiceCreateValidation(t *testing.T) {
	svc := NewRuleService(memory.NewAlertRuleRepository(), memory.NewAlertTriggerRepository(), 0)

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"valid", "  person in hallway ", false},
		{"empty", "   ", true},
		{"too long", strings.Repeat("x", entity.MaxAlertQueryLength+1), true},
		{"max length", strings.Repeat("字", entity.MaxAlertQueryLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := svc.Create(context.Background(), tt.query, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if apperrors.CodeOf(err) != apperrors.CodeValidation {
					t.Errorf("code = %s, want validation", apperrors.CodeOf(err))
				}
				return
			}
			if !rule.Enabled || rule.Query != strings.TrimSpace(tt.query) {
				t.Errorf("rule = %+v", rule)
			}
		})
	}
}

func TestRuleServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewRuleService(memory.NewAlertRuleRepository(), memory.NewAlertTriggerRepository(), 0)

	off := false
	rule, err := svc.Create(ctx, "forklift near people", &off)
	if err != nil {
		t.Fatal(err)
	}
	if rule.Enabled {
		t.Error("rule should start disabled")
	}

	q := "forklift in aisle"
	on := true
	updated, err := svc.Update(ctx, rule.ID, RuleUpdate{Query: &q, Enabled: &on})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Query != q || !updated.Enabled {
		t.Errorf("updated = %+v", updated)
	}

	blank := " "
	if _, err := svc.Update(ctx, rule.ID, RuleUpdate{Query: &blank}); apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Errorf("Update() with blank query error = %v", err)
	}

	if err := svc.Delete(ctx, rule.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, rule.ID); !errors.Is(err, apperrors.ErrRuleNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
	if err := svc.Delete(ctx, rule.ID); !errors.Is(err, apperrors.ErrRuleNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, err := svc.Update(ctx, "missing", RuleUpdate{Enabled: &on}); !errors.Is(err, apperrors.ErrRuleNotFound) {
		t.Errorf("Update() on missing rule error = %v", err)
	}
}

func TestRuleServiceHistoryLimit(t *testing.T) {
	ctx := context.Background()
	triggers := memory.NewAlertTriggerRepository()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		_, _ = triggers.InsertIfAbsent(ctx, &entity.AlertTrigger{
			ID:        string(rune('a' + i%26)),
			RuleID:    "rule-1",
			SegmentID: time.Duration(i).String(),
			MatchedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	svc := NewRuleService(memory.NewAlertRuleRepository(), triggers, 20)

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 20},
		{"explicit", 5, 5},
		{"capped", 5000, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.History(ctx, "", tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("History() = %d entries, want %d", len(got), tt.want)
			}
			if len(got) > 0 && !got[0].MatchedAt.Equal(base.Add(59*time.Second)) {
				t.Errorf("newest first: got %v", got[0].MatchedAt)
			}
		})
	}

	all := NewRuleService(memory.NewAlertRuleRepository(), triggers, 0)
	if got, _ := all.History(ctx, "rule-1", 0); len(got) != 50 {
		t.Errorf("History() default = %d, want 50", len(got))
	}
}
