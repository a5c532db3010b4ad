package dedup

import (
	"testing"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

var scoreNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestScoreStudentStatusWeights(t *testing.T) {
	cases := []struct {
		status model.StudentStatus
		want   int
	}{
		{model.StudentStatusActive, 1000},
		{model.StudentStatusProspect, 500},
		{model.StudentStatusWithdrawn, 0},
		{model.StudentStatusOnHold, 0},
	}
	for _, c := range cases {
		b := ScoreStudent(model.Student{Status: c.status}, scoreNow)
		if b.Status != c.want {
			t.Errorf("status %s: got %d, want %d", c.status, b.Status, c.want)
		}
	}
}

func TestScoreStudentStatusMonotonic(t *testing.T) {
	// Identical records differing only in status: active strictly beats withdrawn.
	base := model.Student{Name: "김민수", CreatedAt: scoreNow.AddDate(0, -1, 0)}

	active := base
	active.Status = model.StudentStatusActive
	withdrawn := base
	withdrawn.Status = model.StudentStatusWithdrawn

	if ScoreStudent(active, scoreNow).Total() <= ScoreStudent(withdrawn, scoreNow).Total() {
		t.Error("active record must score strictly higher than withdrawn")
	}
}

func TestScoreStudentEnrollmentsMonotonic(t *testing.T) {
	none := model.Student{Status: model.StudentStatusActive}
	two := none
	two.Enrollments = []model.Enrollment{
		{Subject: "math", ClassName: "A반"},
		{Subject: "english", ClassName: "B반"},
	}

	sNone := ScoreStudent(none, scoreNow)
	sTwo := ScoreStudent(two, scoreNow)
	if sTwo.Enrollments != 200 {
		t.Errorf("enrollment contribution = %d, want 200", sTwo.Enrollments)
	}
	if sTwo.Total() < sNone.Total() {
		t.Error("more enrollments must never lower the score")
	}
}

func TestScoreStudentProfileFields(t *testing.T) {
	s := model.Student{
		EnglishName:      "Minsu",
		StudentPhone:     "010-1234-5678",
		ParentPhone:      "010-8765-4321",
		ParentName:       "김부모",
		BirthDate:        "2015-03-02",
		Address:          "대구시",
		AttendanceNumber: "42",
		Memo:             "상담 완료",
	}
	b := ScoreStudent(s, scoreNow)
	if b.Profile != 80 {
		t.Errorf("profile contribution = %d, want 80 (8 fields x 10)", b.Profile)
	}

	// Whitespace-only values do not count.
	s.Memo = "   "
	if b := ScoreStudent(s, scoreNow); b.Profile != 70 {
		t.Errorf("profile contribution = %d, want 70", b.Profile)
	}
}

func TestScoreStudentAge(t *testing.T) {
	cases := []struct {
		name      string
		createdAt time.Time
		want      int
	}{
		{"ten days old", scoreNow.AddDate(0, 0, -10), 10},
		{"capped at a year", scoreNow.AddDate(-3, 0, 0), 365},
		{"zero timestamp", time.Time{}, 0},
		{"future timestamp", scoreNow.AddDate(0, 0, 5), 0},
	}
	for _, c := range cases {
		b := ScoreStudent(model.Student{CreatedAt: c.createdAt}, scoreNow)
		if b.Age != c.want {
			t.Errorf("%s: age contribution = %d, want %d", c.name, b.Age, c.want)
		}
	}
}

func TestScoreBreakdownTotal(t *testing.T) {
	b := ScoreBreakdown{Status: 1000, Enrollments: 200, Profile: 30, Age: 100}
	if b.Total() != 1330 {
		t.Errorf("Total() = %d, want 1330", b.Total())
	}
}
