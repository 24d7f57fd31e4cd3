package media

import (
	"regexp"
	"strconv"
	"strings"
)

// Filename parsing utilities.
//
// This file consolidates the regular expressions used to turn loosely
// structured release filenames into structured candidates. Parsing is kept
// deliberately tolerant: we accept multiple community naming conventions and
// return every rule's reading of the name, ordered most-specific first, so the
// resolver can fall through to alternates.
var (
	// encodingTagsRe removes codec/resolution/source tags to isolate the series title.
	encodingTagsRe = regexp.MustCompile(`(?i)\b(?:HD|HDR|DV|x265|x264|H\.?264|H\.?265|HEVC|AVC|AAC|AC3|DD|DTS|FLAC|MP3|WEB-?DL|BluRay|BDRip|DVDRip|HDTV|720p|1080p|2160p|4K|UHD|SDR|10bit|8bit|PROPER|REPACK|iNTERNAL|LiMiTED|UNRATED|EXTENDED|COMPLETE|MULTI|DUAL|DUBBED|SUBBED|RETAIL|NTSC|PAL|UNCUT|UNCENSORED)\b`)

	// bracketTagRe captures short release tags in brackets or parens: [1080p], (x265).
	bracketTagRe = regexp.MustCompile(`[\[\(]([a-zA-Z0-9]{2,})[\]\)]`)

	// seasonEpisodeRe matches canonical combined forms: S01E02, s1 e2.
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bs(\d{1,3})\s*[\. _-]?e(\d{1,3})\b`)

	// verboseSeasonEpisodeRe matches spelled out forms: Season 1 Episode 2.
	verboseSeasonEpisodeRe = regexp.MustCompile(`(?i)\bseason[\s\._-]*(\d{1,3})[\s\._-]*episode[\s\._-]*(\d{1,3})\b`)

	// crossSeasonEpisodeRe matches the NxM convention: 1x02, 01x02.
	crossSeasonEpisodeRe = regexp.MustCompile(`(?i)(?:^|[\s\._-])(\d{1,2})\s*x\s*(\d{1,3})(?:[\s\._-]|$)`)

	// compactSeasonEpisodeRe matches bare digit runs like .102. (season 1 episode 02).
	// Bounded to one season digit so years and resolutions never match.
	compactSeasonEpisodeRe = regexp.MustCompile(`(?:^|[^\w])(\d)(\d\d)(?:[^\w]|$)`)

	// separatorRe collapses dots/underscores/dashes into spaces for title text.
	separatorRe = regexp.MustCompile(`[\._\-]+`)

	// strayBracketRe drops bracket characters orphaned by tag stripping.
	strayBracketRe = regexp.MustCompile(`[\[\]\(\)]`)

	// multiSpaceRe collapses runs of whitespace left behind by tag stripping.
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// PatternID identifies which parser rule produced a candidate.
type PatternID string

const (
	PatternSeasonEpisode PatternID = "sxxeyy"
	PatternVerbose       PatternID = "season-episode"
	PatternCross         PatternID = "nxm"
	PatternCompact       PatternID = "compact"
)

// parseRule pairs a compiled pattern with its identifier. Rules are evaluated
// in declaration order; more specific conventions come first.
type parseRule struct {
	id PatternID
	re *regexp.Regexp
}

var parseRules = []parseRule{
	{PatternSeasonEpisode, seasonEpisodeRe},
	{PatternVerbose, verboseSeasonEpisodeRe},
	{PatternCross, crossSeasonEpisodeRe},
	{PatternCompact, compactSeasonEpisodeRe},
}

// Candidate is one parsed guess at show/season/episode identity.
type Candidate struct {
	SeriesText       string
	Season           int
	Episode          int
	EpisodeTitleText string
	Tags             []string
	Pattern          PatternID
}

// Parse extracts candidates from a single filename. It never touches the
// filesystem or network; callers pass the base name, not a path. The result
// is ordered by rule priority and may be empty.
func Parse(filename string) []Candidate {
	name := strings.TrimSuffix(filename, extensionOf(filename))
	tags := ExtractTags(name)
	cleaned := stripReleaseTags(name)

	var candidates []Candidate
	seen := make(map[string]bool)
	for _, rule := range parseRules {
		m := rule.re.FindStringSubmatchIndex(cleaned)
		if m == nil {
			continue
		}

		season, ok := parseSmallInt(cleaned[m[2]:m[3]], 0, 100)
		if !ok {
			continue
		}
		episode, ok := parseSmallInt(cleaned[m[4]:m[5]], 1, 999)
		if !ok {
			continue
		}

		key := strconv.Itoa(season) + ":" + strconv.Itoa(episode)
		if seen[key] {
			continue
		}
		seen[key] = true

		candidates = append(candidates, Candidate{
			SeriesText:       CleanTitleText(cleaned[:m[0]]),
			Season:           season,
			Episode:          episode,
			EpisodeTitleText: CleanTitleText(cleaned[m[1]:]),
			Tags:             tags,
			Pattern:          rule.id,
		})
	}
	return candidates
}

// ExtractTags returns the short bracketed release tags in name, in order.
func ExtractTags(name string) []string {
	matches := bracketTagRe.FindAllStringSubmatch(name, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// CleanTitleText normalizes a raw title fragment for lookup: separators become
// spaces, bracketed groups are dropped, and whitespace is collapsed.
func CleanTitleText(text string) string {
	text = bracketTagRe.ReplaceAllString(text, " ")
	text = strayBracketRe.ReplaceAllString(text, " ")
	text = separatorRe.ReplaceAllString(text, " ")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// stripReleaseTags removes encoding/source tokens so that a stray "720" or
// "264" never masquerades as a season/episode pair.
func stripReleaseTags(name string) string {
	return encodingTagsRe.ReplaceAllString(name, " ")
}

// parseSmallInt converts a captured numeric token, rejecting anything that is
// not a small integer in [min, max]. Version-like tokens fail here and the
// rule is skipped rather than treated as fatal.
func parseSmallInt(text string, min, max int) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 3 {
		return 0, false
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}

func extensionOf(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[idx:]
	}
	return ""
}
