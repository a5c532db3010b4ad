package dedup

import (
	"sort"
	"strings"
	"time"

	"github.com/haneulsoft/hakwon-api/model"
)

// Member is one student inside a duplicate group, carrying its quality score.
type Member struct {
	Student model.Student  `json:"student"`
	Score   ScoreBreakdown `json:"score"`
}

// Group is a set of students sharing a normalized identity key. Members are
// sorted by descending score; the first member is the default primary.
type Group struct {
	Key    string `json:"key"` // name_school_grade
	Name   string `json:"name"`
	School string `json:"school"` // normalized + abbreviation-corrected
	Grade  string `json:"grade"`

	Members          []Member `json:"members"`
	DefaultPrimaryID uint     `json:"default_primary_id"`
}

// MemberIDs returns the member student IDs in score order.
func (g Group) MemberIDs() []uint {
	ids := make([]uint, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.Student.ID
	}
	return ids
}

// HasMember reports whether id is one of the group's members.
func (g Group) HasMember(id uint) bool {
	for _, m := range g.Members {
		if m.Student.ID == id {
			return true
		}
	}
	return false
}

// resolveIdentity picks the (name, school, grade) triple for a student. The
// semantic external-ID parse wins when it carries all three parts; otherwise
// the record's own fields are used. School is normalized and
// abbreviation-corrected in both cases.
func resolveIdentity(s model.Student, abbrev AbbreviationMap) (name, school, grade string) {
	parsed := ParseExternalID(s.ExternalID)
	if parsed.Semantic && parsed.Segments >= 3 {
		name, school, grade = parsed.Name, parsed.School, parsed.Grade
	} else {
		name, school, grade = s.Name, s.School, s.Grade
	}
	name = strings.TrimSpace(name)
	school = abbrev.Resolve(NormalizeSchool(school))
	grade = strings.TrimSpace(grade)
	return name, school, grade
}

// BuildGroups partitions students into duplicate groups by normalized
// identity key and drops singletons. Deterministic for a fixed input: groups
// are ordered by descending member count (key ascending on ties), members by
// descending score (input order on ties).
func BuildGroups(students []model.Student, now time.Time) []Group {
	abbrev := BuildAbbreviationMap(students)

	buckets := make(map[string]*Group)
	order := []string{}
	for _, s := range students {
		name, school, grade := resolveIdentity(s, abbrev)
		if name == "" {
			// Cannot be grouped without a name.
			continue
		}
		key := name + "_" + school + "_" + grade

		g, ok := buckets[key]
		if !ok {
			g = &Group{Key: key, Name: name, School: school, Grade: grade}
			buckets[key] = g
			order = append(order, key)
		}
		g.Members = append(g.Members, Member{Student: s, Score: ScoreStudent(s, now)})
	}

	groups := make([]Group, 0)
	for _, key := range order {
		g := buckets[key]
		if len(g.Members) < 2 {
			continue
		}
		sort.SliceStable(g.Members, func(i, j int) bool {
			return g.Members[i].Score.Total() > g.Members[j].Score.Total()
		})
		g.DefaultPrimaryID = g.Members[0].Student.ID
		groups = append(groups, *g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}
