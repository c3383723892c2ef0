// Package priority ranks requester roles and decides who wins a contested booking.
package priority

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Role is a normalized requester role such as "dean" or "school_head".
type Role string

// NormalizeRole lowercases s and folds spaces and hyphens to underscores.
func NormalizeRole(s string) Role {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return Role(s)
}

// Rank orders roles; higher wins. Unknown roles rank 0.
type Rank int

const (
	RoleCOO          Role = "coo"
	RoleSchoolHead   Role = "school_head"
	RoleDean         Role = "dean"
	RoleCSG          Role = "csg"
	RoleSBOPresident Role = "sbo_president"
	RoleFaculty      Role = "faculty"
	RoleStaff        Role = "staff"
)

// Table is a versioned role ranking.
type Table struct {
	Version string
	ranks   map[Role]Rank
}

// DefaultTable is the built-in ranking.
func DefaultTable() Table {
	return Table{
		Version: "2024-1",
		ranks: map[Role]Rank{
			RoleCOO:          4,
			RoleSchoolHead:   3,
			RoleDean:         2,
			RoleCSG:          2,
			RoleSBOPresident: 2,
			RoleFaculty:      1,
			RoleStaff:        1,
		},
	}
}

// ParseTable reads "role=rank,role=rank" into a Table. Role names are normalized.
func ParseTable(version, s string) (Table, error) {
	t := Table{Version: version, ranks: make(map[Role]Rank)}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return Table{}, fmt.Errorf("priority entry %q must be role=rank", part)
		}
		role := NormalizeRole(name)
		if role == "" {
			return Table{}, fmt.Errorf("priority entry %q has an empty role", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return Table{}, fmt.Errorf("priority entry %q needs a non-negative integer rank", part)
		}
		t.ranks[role] = Rank(n)
	}
	if len(t.ranks) == 0 {
		return Table{}, fmt.Errorf("priority table is empty")
	}
	return t, nil
}

// RankOf returns the rank of role, or 0 when the role is not listed.
func (t Table) RankOf(role string) Rank {
	return t.ranks[NormalizeRole(role)]
}

// Roles lists the ranked roles, highest first.
func (t Table) Roles() []Role {
	out := make([]Role, 0, len(t.ranks))
	for r := range t.ranks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if t.ranks[out[i]] != t.ranks[out[j]] {
			return t.ranks[out[i]] > t.ranks[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
