package dedup

import (
	"testing"

	"github.com/haneulsoft/hakwon-api/model"
)

func TestNormalizeSchool(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"대구초등학교", "대구초"},
		{"대구중학교", "대구중"},
		{"대구고등학교", "대구고"},
		{"대구초", "대구초"},
		{"  대구초등학교  ", "대구초"},
		{"", ""},
		{"   ", ""},
		{"국제학교", "국제학교"}, // no standard suffix, left alone
	}
	for _, c := range cases {
		if got := NormalizeSchool(c.in); got != c.want {
			t.Errorf("NormalizeSchool(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func makeStudents(schools ...string) []model.Student {
	students := make([]model.Student, len(schools))
	for i, s := range schools {
		students[i] = model.Student{
			ExternalID: "opaque000000000000000",
			Name:       "학생",
			School:     s,
		}
	}
	return students
}

func TestBuildAbbreviationMap(t *testing.T) {
	// One record with the bare abbreviation, ten with the full form: the
	// short form must map to the dominant long form.
	schools := []string{"일중"}
	for i := 0; i < 10; i++ {
		schools = append(schools, "대구일중")
	}
	m := BuildAbbreviationMap(makeStudents(schools...))

	if got := m.Resolve("일중"); got != "대구일중" {
		t.Errorf("Resolve(일중) = %q, want 대구일중", got)
	}
}

func TestBuildAbbreviationMapPrefersMostFrequent(t *testing.T) {
	schools := []string{"일중", "대구일중", "서울일중", "서울일중", "서울일중"}
	m := BuildAbbreviationMap(makeStudents(schools...))

	if got := m.Resolve("일중"); got != "서울일중" {
		t.Errorf("Resolve(일중) = %q, want 서울일중 (most frequent long form)", got)
	}
}

func TestBuildAbbreviationMapNoLongerSibling(t *testing.T) {
	// A short form with no longer sibling in the dataset gets no mapping.
	m := BuildAbbreviationMap(makeStudents("일중", "일중"))
	if got := m.Resolve("일중"); got != "일중" {
		t.Errorf("Resolve(일중) = %q, want unchanged", got)
	}
}

func TestBuildAbbreviationMapIgnoresLongForms(t *testing.T) {
	// 3+ rune forms are never treated as abbreviations.
	m := BuildAbbreviationMap(makeStudents("대구일중", "서울대구일중", "서울대구일중"))
	if got := m.Resolve("대구일중"); got != "대구일중" {
		t.Errorf("Resolve(대구일중) = %q, want unchanged", got)
	}
}

func TestBuildAbbreviationMapCountsSemanticIDs(t *testing.T) {
	// School candidates come from semantic external IDs too, with suffix
	// normalization applied before tallying.
	students := []model.Student{
		{ExternalID: "김민수_대구일중학교_중1", Name: "김민수"},
		{ExternalID: "9912345", Name: "박지훈", School: "일중"},
	}
	m := BuildAbbreviationMap(students)
	if got := m.Resolve("일중"); got != "대구일중" {
		t.Errorf("Resolve(일중) = %q, want 대구일중", got)
	}
}
