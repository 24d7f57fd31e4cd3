package plan

import (
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/episode-tidy/internal/resolve"
	"github.com/Digital-Shane/episode-tidy/internal/scan"
)

// Action is the decided filesystem action for one file.
type Action string

const (
	ActionRename Action = "rename"
	ActionDelete Action = "delete"
	ActionSkip   Action = "skip"
)

// SkipReason explains a Skip action.
type SkipReason string

const (
	SkipCollision      SkipReason = "collision"
	SkipAlreadyCorrect SkipReason = "already_correct"
	SkipUnresolved     SkipReason = "unresolved"
)

// Plan is the decided action for one RawEntry prior to execution.
type Plan struct {
	Entry      scan.RawEntry
	Action     Action
	TargetPath string
	SkipReason SkipReason
	Unresolved resolve.UnresolvedReason
}

// Resolution is the per-file input to planning: either a match or the reason
// resolution came up empty.
type Resolution struct {
	Entry      scan.RawEntry
	Match      *resolve.Match
	Unresolved *resolve.Unresolved
}

// Planner computes target names and enforces collision safety within one run.
// Target paths across all Rename plans are pairwise distinct; a computed
// target that collides with an already-planned target or with an on-disk file
// outside the run is downgraded to Skip(Collision). Renames never destroy an
// unrelated file.
type Planner struct {
	blacklist    map[string]bool
	template     string
	preserveTags map[string]bool

	allocated map[string]bool
	inRun     map[string]bool
	existing  map[string]bool
}

// NewPlanner builds a planner for one run. existing is the scan-time listing
// of the directory (paths currently on disk), entries are the files that are
// part of the run.
func NewPlanner(blacklist []string, template string, preserveTags []string, entries []scan.RawEntry, existing []string) *Planner {
	p := &Planner{
		blacklist:    make(map[string]bool, len(blacklist)),
		template:     template,
		preserveTags: make(map[string]bool, len(preserveTags)),
		allocated:    make(map[string]bool),
		inRun:        make(map[string]bool, len(entries)),
		existing:     make(map[string]bool, len(existing)),
	}
	for _, ext := range blacklist {
		p.blacklist[normalizeExt(ext)] = true
	}
	for _, tag := range preserveTags {
		p.preserveTags[strings.ToLower(tag)] = true
	}
	for _, entry := range entries {
		p.inRun[entry.Path] = true
	}
	for _, path := range existing {
		p.existing[path] = true
	}
	return p
}

// IsBlacklisted reports whether ext is in the configured deletion set.
// Matching is a case-insensitive exact comparison.
func IsBlacklisted(ext string, blacklist map[string]bool) bool {
	return blacklist[normalizeExt(ext)]
}

// Blacklisted reports whether the entry's extension is marked for deletion.
// Blacklist takes precedence over everything else: such files are deleted
// even when they would parse and resolve.
func (p *Planner) Blacklisted(entry scan.RawEntry) bool {
	return IsBlacklisted(entry.Ext, p.blacklist)
}

// Plan decides the action for one resolution. Safe to call once per entry;
// rename targets are recorded so later entries can't claim the same path.
func (p *Planner) Plan(res Resolution) Plan {
	entry := res.Entry

	if p.Blacklisted(entry) {
		return Plan{Entry: entry, Action: ActionDelete}
	}

	if res.Match == nil {
		reason := resolve.NoSeriesMatch
		if res.Unresolved != nil {
			reason = res.Unresolved.Reason
		}
		return Plan{Entry: entry, Action: ActionSkip, SkipReason: SkipUnresolved, Unresolved: reason}
	}

	name, err := p.targetName(res.Match)
	if err != nil {
		return Plan{Entry: entry, Action: ActionSkip, SkipReason: SkipUnresolved, Unresolved: resolve.NoSeriesMatch}
	}
	target := filepath.Join(filepath.Dir(entry.Path), name)

	if target == entry.Path {
		// Claim the target anyway so a sibling computing the same name
		// collides at plan time instead of failing at apply time.
		p.allocated[target] = true
		return Plan{Entry: entry, Action: ActionSkip, SkipReason: SkipAlreadyCorrect, TargetPath: target}
	}
	if p.allocated[target] {
		return Plan{Entry: entry, Action: ActionSkip, SkipReason: SkipCollision, TargetPath: target}
	}
	if p.existing[target] && !p.inRun[target] {
		return Plan{Entry: entry, Action: ActionSkip, SkipReason: SkipCollision, TargetPath: target}
	}

	p.allocated[target] = true
	return Plan{Entry: entry, Action: ActionRename, TargetPath: target}
}

func (p *Planner) targetName(m *resolve.Match) (string, error) {
	tags := make([]string, 0, len(m.Source.Tags))
	for _, tag := range m.Source.Tags {
		if p.preserveTags[strings.ToLower(tag)] {
			tags = append(tags, tag)
		}
	}

	name := FormatEpisodeName(p.template, NameParts{
		Show:         m.Series.CanonicalName,
		Season:       m.Episode.Season,
		Episode:      m.Episode.Episode,
		EpisodeTitle: m.Episode.CanonicalTitle,
		Tags:         tags,
	})

	ext := m.Entry.Ext
	if ext != "" {
		name += "." + ext
	}
	return sanitizeFilename(name)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
