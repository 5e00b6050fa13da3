package utils

import "testing"

func TestNewPagination(t *testing.T) {
	cases := []struct {
		name  string
		page  int
		limit int
		total int64
		want  Pagination
	}{
		{
			name: "first of two pages", page: 1, limit: 10, total: 15,
			want: Pagination{CurrentPage: 1, TotalPages: 2, TotalItems: 15, HasNext: true, HasPrev: false},
		},
		{
			name: "last of two pages", page: 2, limit: 10, total: 15,
			want: Pagination{CurrentPage: 2, TotalPages: 2, TotalItems: 15, HasNext: false, HasPrev: true},
		},
		{
			name: "empty result", page: 1, limit: 20, total: 0,
			want: Pagination{CurrentPage: 1, TotalPages: 0, TotalItems: 0, HasNext: false, HasPrev: false},
		},
		{
			name: "exact page boundary", page: 1, limit: 10, total: 10,
			want: Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 10, HasNext: false, HasPrev: false},
		},
		{
			name: "page past the end", page: 5, limit: 10, total: 15,
			want: Pagination{CurrentPage: 5, TotalPages: 2, TotalItems: 15, HasNext: false, HasPrev: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewPagination(tc.page, tc.limit, tc.total)
			if got != tc.want {
				t.Fatalf("NewPagination(%d, %d, %d) = %+v, want %+v",
					tc.page, tc.limit, tc.total, got, tc.want)
			}
		})
	}
}

func TestParseUint(t *testing.T) {
	if got := ParseUint("42"); got != 42 {
		t.Fatalf("ParseUint(\"42\") = %d, want 42", got)
	}
	if got := ParseUint("not-a-number"); got != 0 {
		t.Fatalf("ParseUint garbage = %d, want 0", got)
	}
	if got := ParseUint("-1"); got != 0 {
		t.Fatalf("ParseUint(\"-1\") = %d, want 0", got)
	}
}
