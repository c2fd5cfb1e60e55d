package system

import (
	"fmt"
	"strings"

	"github.com/l1jgo/gamesys/internal/core/job"
)

const dumpIndent = "    "

// Dump renders the update tree below every root group, then the live systems
// that no root reaches. Each line is "[flags] type", where flags are + or -
// for enabled/disabled and G for groups, followed by declared resources.
func (w *World) Dump() string {
	var sb strings.Builder
	seen := make(map[*Base]bool)
	for _, r := range w.roots {
		dumpSystem(&sb, r, 0, seen)
	}
	header := false
	for _, s := range w.systems {
		if seen[s.base()] {
			continue
		}
		if !header {
			sb.WriteString("--- manual systems ---\n")
			header = true
		}
		dumpSystem(&sb, s, 0, seen)
	}
	return sb.String()
}

func dumpSystem(sb *strings.Builder, s System, depth int, seen map[*Base]bool) {
	b := s.base()
	seen[b] = true
	g, isGroup := asGroup(s)

	flags := "+"
	if !b.enabled {
		flags = "-"
	}
	if isGroup {
		flags += "G"
	}
	line := fmt.Sprintf("%s[%s] %s", strings.Repeat(dumpIndent, depth), flags, b.typ)
	if deps := describeDeps(b); deps != "" {
		line = fmt.Sprintf("%-80s| %s", line, deps)
	}
	sb.WriteString(line)
	sb.WriteByte('\n')

	if !isGroup {
		return
	}
	pad := strings.Repeat(dumpIndent, depth+1)
	if g.manual {
		sb.WriteString(pad + "* automatic sorting is off\n")
	}
	if g.dirty {
		sb.WriteString(pad + "* sort is dirty\n")
	}
	for _, m := range g.members {
		dumpSystem(sb, m, depth+1, seen)
	}
}

func describeDeps(b *Base) string {
	var parts []string
	if len(b.reads) > 0 {
		parts = append(parts, "Reads "+joinKeys(b.reads))
	}
	if len(b.writes) > 0 {
		parts = append(parts, "Writes "+joinKeys(b.writes))
	}
	if b.sync&SyncSystem != 0 {
		parts = append(parts, "SyncSystem")
	}
	if b.sync&SyncWorld != 0 {
		parts = append(parts, "SyncWorld")
	}
	if b.sync&CompleteWorldAfterUpdate != 0 {
		parts = append(parts, "CompleteWorldAfterUpdate")
	}
	return strings.Join(parts, "; ")
}

func joinKeys(keys []job.Key) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
