package dedup

import (
	"reflect"
	"testing"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

var groupNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestBuildGroupsBasic(t *testing.T) {
	// Scenario: active record with enrollments vs withdrawn empty record.
	a := model.Student{
		ID:         1,
		ExternalID: "김민수_대구초_초3",
		Name:       "김민수",
		School:     "대구초",
		Grade:      "초3",
		Status:     model.StudentStatusActive,
		CreatedAt:  groupNow.AddDate(-1, 0, 0),
		Enrollments: []model.Enrollment{
			{Subject: "math", ClassName: "A반"},
			{Subject: "english", ClassName: "B반"},
		},
	}
	b := model.Student{
		ID:         2,
		ExternalID: "20250002",
		Name:       "김민수",
		School:     "대구초등학교",
		Grade:      "초3",
		Status:     model.StudentStatusWithdrawn,
		CreatedAt:  groupNow.AddDate(0, 0, -3),
	}

	groups := BuildGroups([]model.Student{b, a}, groupNow)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.Key != "김민수_대구초_초3" {
		t.Errorf("key = %q", g.Key)
	}
	if g.DefaultPrimaryID != a.ID {
		t.Errorf("default primary = %d, want %d (highest score)", g.DefaultPrimaryID, a.ID)
	}
	if total := g.Members[0].Score.Total(); total < 1200 {
		t.Errorf("primary score = %d, want >= 1200", total)
	}
}

func TestBuildGroupsSemanticIdentifierWins(t *testing.T) {
	// The record's own fields disagree with the semantic ID; the ID wins when
	// it carries all three parts.
	a := model.Student{ID: 1, ExternalID: "김민수_대구초_초3", Name: "다른이름", School: "다른학교", Grade: "중2"}
	b := model.Student{ID: 2, ExternalID: "20250002", Name: "김민수", School: "대구초", Grade: "초3"}

	groups := BuildGroups([]model.Student{a, b}, groupNow)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (semantic parse must override fields)", len(groups))
	}
}

func TestBuildGroupsAbbreviationCorrection(t *testing.T) {
	// "일중" and "대구일중" land in the same group once the abbreviation map
	// resolves the short form.
	students := []model.Student{
		{ID: 1, ExternalID: "1001", Name: "박지훈", School: "일중", Grade: "중1"},
		{ID: 2, ExternalID: "1002", Name: "박지훈", School: "대구일중", Grade: "중1"},
	}
	for i := 0; i < 10; i++ {
		students = append(students, model.Student{
			ID:         uint(10 + i),
			ExternalID: "backfill" + string(rune('a'+i)),
			Name:       "기타",
			School:     "대구일중",
			Grade:      "중3",
		})
	}

	groups := BuildGroups(students, groupNow)
	found := false
	for _, g := range groups {
		if g.Name == "박지훈" {
			found = true
			if len(g.Members) != 2 {
				t.Errorf("박지훈 group has %d members, want 2", len(g.Members))
			}
			if g.School != "대구일중" {
				t.Errorf("group school = %q, want corrected form", g.School)
			}
		}
	}
	if !found {
		t.Fatal("abbreviated and full school forms did not group together")
	}
}

func TestBuildGroupsExcludesEmptyNames(t *testing.T) {
	students := []model.Student{
		{ID: 1, ExternalID: "9000001", Name: "", School: "대구초", Grade: "초3"},
		{ID: 2, ExternalID: "9000002", Name: "   ", School: "대구초", Grade: "초3"},
	}
	if groups := BuildGroups(students, groupNow); len(groups) != 0 {
		t.Errorf("got %d groups, want 0 (nameless records cannot be grouped)", len(groups))
	}
}

func TestBuildGroupsSingletonsDropped(t *testing.T) {
	students := []model.Student{
		{ID: 1, ExternalID: "1", Name: "김민수", School: "대구초", Grade: "초3"},
		{ID: 2, ExternalID: "2", Name: "박지훈", School: "대구초", Grade: "초3"},
	}
	if groups := BuildGroups(students, groupNow); len(groups) != 0 {
		t.Errorf("got %d groups, want 0 (no key has two members)", len(groups))
	}
}

func TestBuildGroupsSortedBySize(t *testing.T) {
	students := []model.Student{
		{ID: 1, ExternalID: "1", Name: "김민수", School: "대구초", Grade: "초3"},
		{ID: 2, ExternalID: "2", Name: "김민수", School: "대구초", Grade: "초3"},
		{ID: 3, ExternalID: "3", Name: "박지훈", School: "대구초", Grade: "초3"},
		{ID: 4, ExternalID: "4", Name: "박지훈", School: "대구초", Grade: "초3"},
		{ID: 5, ExternalID: "5", Name: "박지훈", School: "대구초", Grade: "초3"},
	}
	groups := BuildGroups(students, groupNow)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Name != "박지훈" {
		t.Errorf("largest cluster must come first, got %q", groups[0].Name)
	}
}

func TestBuildGroupsDeterministic(t *testing.T) {
	students := []model.Student{
		{ID: 1, ExternalID: "1", Name: "김민수", School: "대구초", Grade: "초3", Status: model.StudentStatusActive},
		{ID: 2, ExternalID: "2", Name: "김민수", School: "대구초등학교", Grade: "초3"},
		{ID: 3, ExternalID: "3", Name: "박지훈", School: "일중", Grade: "중1"},
		{ID: 4, ExternalID: "4", Name: "박지훈", School: "대구일중", Grade: "중1"},
		{ID: 5, ExternalID: "5", Name: "기타", School: "대구일중", Grade: "중3"},
	}

	first := BuildGroups(students, groupNow)
	second := BuildGroups(students, groupNow)
	if !reflect.DeepEqual(first, second) {
		t.Error("BuildGroups must be deterministic for a fixed record set")
	}
}
