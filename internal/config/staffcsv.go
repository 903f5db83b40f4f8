package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ParseStaffCSV reads "Name, Role, MaxHours" rows into team members. Rows
// with fewer than three fields are skipped, as is a leading header row.
// Member IDs are derived from the name ("Mary Ann" becomes "mary-ann").
func ParseStaffCSV(r io.Reader) ([]TeamMember, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var members []TeamMember
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read staff csv: %w", err)
		}
		if len(record) < 3 {
			continue
		}

		name := strings.TrimSpace(record[0])
		role := strings.TrimSpace(record[1])
		maxHours, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("row %d: max hours %q is not a whole number", row, record[2])
		}
		if maxHours < 0 {
			return nil, fmt.Errorf("row %d: max hours must not be negative", row)
		}

		id := memberID(name)
		if id == "" {
			return nil, fmt.Errorf("row %d: name is required", row)
		}

		m := TeamMember{ID: id, Name: name, MaxHours: &maxHours}
		if role != "" {
			m.Roles = []string{role}
		}
		members = append(members, m)
	}

	return members, nil
}

// memberID lowercases name and joins its letter and digit runs with dashes
func memberID(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return strings.Join(fields, "-")
}

// MergeMembers adds members to the team. A member whose ID already exists
// keeps its availability, pins and target; its name and max hours are
// replaced and any new role is added. Returns how many were added and
// updated.
func (t *Team) MergeMembers(members []TeamMember) (added, updated int) {
	for _, m := range members {
		i := slices.IndexFunc(t.Members, func(existing TeamMember) bool { return existing.ID == m.ID })
		if i < 0 {
			t.Members = append(t.Members, m)
			added++
			continue
		}

		existing := &t.Members[i]
		existing.Name = m.Name
		existing.MaxHours = m.MaxHours
		for _, role := range m.Roles {
			if !slices.Contains(existing.Roles, role) {
				existing.Roles = append(existing.Roles, role)
			}
		}
		updated++
	}
	return added, updated
}
