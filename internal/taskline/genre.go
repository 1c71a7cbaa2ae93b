package taskline

import "strings"

// Genre maps title keywords to a tag.
type Genre struct {
	Tag      string   `toml:"tag" yaml:"tag"`
	Keywords []string `toml:"keywords" yaml:"keywords"`
}

// DefaultGenre is used when no keyword matches.
const DefaultGenre = "デスクワーク"

// DefaultGenres in priority order: floor work, customer work, routine paperwork.
var DefaultGenres = []Genre{
	{Tag: "売場作業", Keywords: []string{"品出し", "売場", "坪売り"}},
	{Tag: "顧客対応", Keywords: []string{"接客", "顧客", "電話", "客"}},
	{Tag: "定型作業", Keywords: []string{"チェックリスト", "週報", "月報", "年末調整"}},
}

// ExtraCanonicalTags are accepted as canonical tags even though no keyword infers them.
var ExtraCanonicalTags = []string{"学習", "健康", "趣味"}

// DefaultExemptTitles are fixed entries that are never reformatted.
var DefaultExemptTitles = []string{"勤務", "休み", "休憩は打刻！"}

// Classify returns the tag of the first genre with a keyword contained in
// title, or fallback.
func Classify(title string, genres []Genre, fallback string) string {
	name := strings.ToLower(title)
	for _, g := range genres {
		for _, kw := range g.Keywords {
			if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
				return g.Tag
			}
		}
	}
	return fallback
}
