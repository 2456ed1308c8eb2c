package domain

import (
	"regexp"
	"strings"
)

// Garbage-day entry phrases look like 「可燃ゴミは月曜日」. The weekday is a
// single kanji; 曜日 may be abbreviated to 曜 or dropped.
var garbageRe = regexp.MustCompile(`(.+?[ゴご][ミみ])は?([日月火水木金土])曜?日?`)

var weekdayIndex = map[string]int{
	"日": 0, "月": 1, "火": 2, "水": 3, "木": 4, "金": 5, "土": 6,
}

var weekdayKanji = []string{"日", "月", "火", "水", "木", "金", "土"}

// ParseGarbageEntry extracts a collection category and weekday index from a
// garbage-day phrase. ok is false when the text does not match the pattern.
func ParseGarbageEntry(text string) (category string, weekday int, ok bool) {
	m := garbageRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", 0, false
	}
	idx, found := weekdayIndex[m[2]]
	if !found {
		return "", 0, false
	}
	return strings.TrimSpace(m[1]), idx, true
}

// IsGarbageDone reports whether the text is a terminator for the garbage-day
// entry loop.
func IsGarbageDone(text string) bool {
	switch strings.TrimSpace(text) {
	case "おわり", "終わり", "なし":
		return true
	}
	return false
}

// WeekdayKanji returns the kanji label for a weekday index 0..6.
func WeekdayKanji(weekday int) string {
	if weekday < 0 || weekday > 6 {
		return ""
	}
	return weekdayKanji[weekday]
}
