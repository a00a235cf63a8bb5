package page

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/scopedex/internal/domain"
)

func TestNewRequest_Defaults(t *testing.T) {
	r, err := NewRequest(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Page != 1 || r.PerPage != DefaultPerPage {
		t.Errorf("got %+v", r)
	}
	if r.Offset() != 0 {
		t.Errorf("Offset() = %d", r.Offset())
	}
}

func TestNewRequest_Bounds(t *testing.T) {
	tests := []struct {
		page, perPage int
		field         string
	}{
		{-1, 10, "page"},
		{1, MaxPerPage + 1, "per_page"},
		{1, -5, "per_page"},
	}
	for _, tt := range tests {
		_, err := NewRequest(tt.page, tt.perPage)
		if !errors.Is(err, domain.ErrInvalidPayload) {
			t.Errorf("NewRequest(%d, %d) = %v, want ErrInvalidPayload", tt.page, tt.perPage, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.field) {
			t.Errorf("error %q does not name %q", err, tt.field)
		}
	}
}

func TestOffset(t *testing.T) {
	r := Request{Page: 3, PerPage: 5}
	if r.Offset() != 10 {
		t.Errorf("Offset() = %d, want 10", r.Offset())
	}
}

func TestNewResponse_Pagination(t *testing.T) {
	// 12 matching items at 5 per page: 5, 5, 2.
	all := make([]int, 12)
	for i := range all {
		all[i] = i
	}
	wantCounts := []int{5, 5, 2}

	for p := 1; p <= 3; p++ {
		req := Request{Page: p, PerPage: 5}
		end := min(req.Offset()+req.PerPage, len(all))
		resp := NewResponse(all[req.Offset():end], req)

		if resp.Count != wantCounts[p-1] {
			t.Errorf("page %d: Count = %d, want %d", p, resp.Count, wantCounts[p-1])
		}
		if (resp.Previous == nil) != (p == 1) {
			t.Errorf("page %d: Previous = %v", p, resp.Previous)
		}
		if (resp.Next == nil) != (p == 3) {
			t.Errorf("page %d: Next = %v", p, resp.Next)
		}
		if resp.Next != nil && *resp.Next != p+1 {
			t.Errorf("page %d: Next = %d", p, *resp.Next)
		}
	}
}

func TestNewResponse_NilItems(t *testing.T) {
	resp := NewResponse[string](nil, Request{Page: 1, PerPage: 10})
	if resp.Items == nil || resp.Count != 0 || resp.Next != nil {
		t.Errorf("got %+v", resp)
	}
}
