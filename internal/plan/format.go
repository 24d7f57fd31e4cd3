package plan

import (
	"fmt"
	"strings"
)

// NameParts are the fields a naming template can reference.
type NameParts struct {
	Show         string
	Season       int
	Episode      int
	EpisodeTitle string
	Tags         []string
}

// DefaultTemplate produces names like "Show Name - S01E02 - Pilot Returns".
const DefaultTemplate = "{show} - S{season}E{episode} - {episode_title}"

// FormatEpisodeName applies the naming template. Season and episode are
// zero-padded to two digits. When the episode title is empty, separators left
// dangling by the missing variable are trimmed so templates don't need
// conditionals.
func FormatEpisodeName(template string, parts NameParts) string {
	if template == "" {
		template = DefaultTemplate
	}

	replacer := strings.NewReplacer(
		"{show}", strings.TrimSpace(parts.Show),
		"{season}", fmt.Sprintf("%02d", parts.Season),
		"{episode}", fmt.Sprintf("%02d", parts.Episode),
		"{episode_title}", strings.TrimSpace(parts.EpisodeTitle),
		"{tags}", formatTags(parts.Tags),
	)
	name := replacer.Replace(template)

	// Collapse leftovers from empty variables: "A -  - B", trailing " - ".
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	name = strings.ReplaceAll(name, "- -", "-")
	name = strings.Trim(name, " -")
	return name
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	wrapped := make([]string, 0, len(tags))
	for _, tag := range tags {
		wrapped = append(wrapped, "["+tag+"]")
	}
	return strings.Join(wrapped, " ")
}
