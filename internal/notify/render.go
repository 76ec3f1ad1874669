package notify

import (
	"fmt"
	"sort"
	"strings"

	"shiftbot/internal/domain"
)

// roleGroup holds one role's due tasks split by duration class. Section order
// in the rendered message is fixed: daily, weekly, monthly.
type roleGroup struct {
	daily   []domain.Task
	weekly  []domain.Task
	monthly []domain.Task
}

func (g *roleGroup) add(t domain.Task) {
	switch t.Duration {
	case domain.DurationDaily:
		g.daily = append(g.daily, t)
	case domain.DurationWeekly:
		g.weekly = append(g.weekly, t)
	case domain.DurationMonthly:
		g.monthly = append(g.monthly, t)
	}
}

func (g *roleGroup) all() []domain.Task {
	out := make([]domain.Task, 0, len(g.daily)+len(g.weekly)+len(g.monthly))
	out = append(out, g.daily...)
	out = append(out, g.weekly...)
	return append(out, g.monthly...)
}

func groupByRole(tasks []domain.Task) map[domain.Role]*roleGroup {
	groups := make(map[domain.Role]*roleGroup)
	for _, t := range tasks {
		g, ok := groups[t.Role]
		if !ok {
			g = &roleGroup{}
			groups[t.Role] = g
		}
		g.add(t)
	}
	return groups
}

// orderedRoles returns the known roles in their fixed order followed by any
// unknown roles sorted by name, so dispatch order is deterministic.
func orderedRoles(groups map[domain.Role]*roleGroup) []domain.Role {
	known := make(map[domain.Role]bool, len(domain.Roles))
	var roles []domain.Role
	for _, r := range domain.Roles {
		known[r] = true
		if _, ok := groups[r]; ok {
			roles = append(roles, r)
		}
	}
	var extra []domain.Role
	for r := range groups {
		if !known[r] {
			extra = append(extra, r)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(roles, extra...)
}

func renderMessage(header string, g *roleGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 *%s*\n\n", header)
	renderSection(&b, "Daily tasks:", g.daily)
	renderSection(&b, "Weekly tasks:", g.weekly)
	renderSection(&b, "Monthly tasks:", g.monthly)
	return b.String()
}

func renderSection(b *strings.Builder, title string, tasks []domain.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(b, "*%s*\n", title)
	for _, t := range tasks {
		fmt.Fprintf(b, "%d. %s\n📄 %s\n\n", t.TaskNumber, t.Title, t.Details)
	}
}

func firstContactHeader(role domain.Role) string {
	return fmt.Sprintf("New tasks for %s:", role)
}

func reminderHeader(role domain.Role) string {
	return fmt.Sprintf("Reminders for %s:", role)
}
