package dedup

import "testing"

func TestIsOpaqueID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"123456", true},                       // pure digits
		{"aB3dE6gH9jK2mN5pQ8sT", true},        // 20 alphanumeric characters
		{"aB3dE6gH9jK2mN5pQ8sT1u", true},      // longer than 20
		{"aB3dE6gH9jK2mN5pQ8s", false},        // 19 characters, below threshold
		{"김민수_대구초_초3", false},           // semantic
		{"김민수A_대구초_초3", false},          // semantic with disambiguation suffix
		{"김민수", false},                      // name-only semantic
	}
	for _, c := range cases {
		if got := IsOpaqueID(c.id); got != c.want {
			t.Errorf("IsOpaqueID(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestParseExternalID(t *testing.T) {
	cases := []struct {
		id     string
		want   ParsedID
	}{
		{
			id:   "김민수_대구초_초3",
			want: ParsedID{Name: "김민수", School: "대구초", Grade: "초3", Segments: 3, Semantic: true},
		},
		{
			id:   "김민수A_대구초_초3",
			want: ParsedID{Name: "김민수A", School: "대구초", Grade: "초3", Segments: 3, Semantic: true},
		},
		{
			// Extra segments fold into the grade.
			id:   "김민수_대구초_초3_재원",
			want: ParsedID{Name: "김민수", School: "대구초", Grade: "초3_재원", Segments: 4, Semantic: true},
		},
		{
			id:   "김민수",
			want: ParsedID{Name: "김민수", Segments: 1, Semantic: true},
		},
		{
			id:   "20250012",
			want: ParsedID{},
		},
		{
			id:   "xK9mP2qR7sT4vW1yZ8aB3cD6",
			want: ParsedID{},
		},
		{
			id:   "",
			want: ParsedID{},
		},
	}
	for _, c := range cases {
		if got := ParseExternalID(c.id); got != c.want {
			t.Errorf("ParseExternalID(%q) = %+v, want %+v", c.id, got, c.want)
		}
	}
}
