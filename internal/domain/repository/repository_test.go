package repository

import "testing"

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name          string
		page, size    int
		want          Pagination
		offset, limit int
	}{
		{"defaults", 0, 0, Pagination{Page: 1, PageSize: DefaultPageSize}, 0, DefaultPageSize},
		{"capped", 3, 500, Pagination{Page: 3, PageSize: MaxPageSize}, 200, MaxPageSize},
		{"explicit", 2, 10, Pagination{Page: 2, PageSize: 10}, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPagination(tt.page, tt.size)
			if got != tt.want {
				t.Fatalf("NewPagination() = %+v, want %+v", got, tt.want)
			}
			if got.Offset() != tt.offset || got.Limit() != tt.limit {
				t.Errorf("offset/limit = %d/%d, want %d/%d", got.Offset(), got.Limit(), tt.offset, tt.limit)
			}
		})
	}
}

func TestNewPagedResult(t *testing.T) {
	r := NewPagedResult[string](nil, 41, NewPagination(1, 20))
	if r.Items == nil || len(r.Items) != 0 {
		t.Errorf("items = %v, want empty slice", r.Items)
	}
	if r.TotalPages != 3 {
		t.Errorf("total pages = %d, want 3", r.TotalPages)
	}
}
