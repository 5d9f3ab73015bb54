package pagination

import (
	"net/http/httptest"
	"testing"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantPage int
		wantSize int
	}{
		{"defaults", "/items", 1, 20},
		{"explicit", "/items?page=3&limit=50", 3, 50},
		{"limit clamped", "/items?limit=500", 1, 100},
		{"zero page rejected", "/items?page=0", 1, 20},
		{"negative limit rejected", "/items?limit=-5", 1, 20},
		{"garbage ignored", "/items?page=abc&limit=xyz", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			p := ParsePage(r)
			if p.Number != tt.wantPage || p.Size != tt.wantSize {
				t.Errorf("ParsePage = %d/%d, want %d/%d", p.Number, p.Size, tt.wantPage, tt.wantSize)
			}
		})
	}
}

func TestPageOffset(t *testing.T) {
	p := Page{Number: 3, Size: 20}
	if p.Offset() != 40 {
		t.Errorf("Offset = %d, want 40", p.Offset())
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	tests := []struct {
		total     int64
		size      int
		wantPages int
	}{
		{0, 20, 1},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 25, 4},
	}

	for _, tt := range tests {
		resp := NewPaginatedResponse(nil, tt.total, Page{Number: 1, Size: tt.size})
		if resp.TotalPages != tt.wantPages {
			t.Errorf("total=%d size=%d: TotalPages = %d, want %d",
				tt.total, tt.size, resp.TotalPages, tt.wantPages)
		}
	}
}
