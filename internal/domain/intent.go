package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReminderIntent is the result of parsing a free-text message for a
// reminder. DueAt is in UTC.
type ReminderIntent struct {
	DueAt time.Time
	Task  string
}

var (
	// relative offsets: 「10分後」「2時間後」
	relativeRe = regexp.MustCompile(`([0-9]+)\s*(分|時間)後`)

	// absolute day words: 今日 / 明日 / 明後日 / X曜日
	dayRe = regexp.MustCompile(`今日|明日|あした|明後日|[日月火水木金土]曜日?`)

	// absolute times: 「15時」「9時半」「7時30分」「19:30」 and the coarse
	// 朝 / 昼 / 夜 words
	timeRe = regexp.MustCompile(`([0-9]{1,2})時(?:([0-9]{1,2})分|(半))?|([0-9]{1,2}):([0-9]{2})|朝|昼|夜`)

	// trailing trigger phrases: 「〜って覚えといて」「〜をリマインドして」 etc.
	triggerRe = regexp.MustCompile(`(?:って|と|を)?(?:リマインド(?:して)?(?:や)?|思い出させて(?:や)?|覚えと(?:い|っ)て(?:や)?|忘れ(?:んといて|ないで)(?:や)?|教えて(?:や)?)\s*$`)
)

// ExtractReminder parses free text for a reminder date/time and task,
// anchored at now. Two strategies are tried in order: a relative offset
// (「N分後」「N時間後」) and an absolute Japanese date/time phrase,
// forward-dated so a bare weekday or time always lands in the future.
// The task is the text with the time span and trigger phrases stripped;
// an empty task means no reminder even when a time was recognized.
func ExtractReminder(text string, now time.Time) (ReminderIntent, bool) {
	text = normalizeDigits(strings.TrimSpace(text))
	if text == "" {
		return ReminderIntent{}, false
	}

	if m := relativeRe.FindStringSubmatchIndex(text); m != nil {
		qty, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || qty <= 0 {
			return ReminderIntent{}, false
		}
		d := time.Duration(qty) * time.Minute
		if text[m[4]:m[5]] == "時間" {
			d = time.Duration(qty) * time.Hour
		}
		task := cleanTask(stripSpans(text, [][]int{{m[0], m[1]}}))
		if task == "" {
			return ReminderIntent{}, false
		}
		return ReminderIntent{DueAt: now.Add(d).UTC(), Task: task}, true
	}

	return extractAbsolute(text, now)
}

func extractAbsolute(text string, now time.Time) (ReminderIntent, bool) {
	dayLoc := dayRe.FindStringIndex(text)
	timeLoc := timeRe.FindStringIndex(text)
	if dayLoc == nil && timeLoc == nil {
		return ReminderIntent{}, false
	}
	// weak evidence needs a trigger phrase: a day word alone (今日 shows up
	// in ordinary chatter) and likewise a bare 朝/昼/夜 with no day word
	// (朝ごはん asks about a meal, not a schedule)
	weak := timeLoc == nil ||
		(dayLoc == nil && isCoarseTime(text[timeLoc[0]:timeLoc[1]]))
	if weak && !triggerRe.MatchString(text) {
		return ReminderIntent{}, false
	}

	local := now.In(jst)

	hour, min := 8, 0 // day word without a time means the morning
	hasTime := timeLoc != nil
	if hasTime {
		m := timeRe.FindStringSubmatch(text[timeLoc[0]:timeLoc[1]])
		switch {
		case m[1] != "":
			hour, _ = strconv.Atoi(m[1])
			min = 0
			if m[2] != "" {
				min, _ = strconv.Atoi(m[2])
			} else if m[3] == "半" {
				min = 30
			}
		case m[4] != "":
			hour, _ = strconv.Atoi(m[4])
			min, _ = strconv.Atoi(m[5])
		case m[0] == "朝":
			hour, min = 8, 0
		case m[0] == "昼":
			hour, min = 12, 0
		case m[0] == "夜":
			hour, min = 20, 0
		}
		if hour > 23 || min > 59 {
			return ReminderIntent{}, false
		}
	}

	due := time.Date(local.Year(), local.Month(), local.Day(), hour, min, 0, 0, jst)

	spans := [][]int{}
	if timeLoc != nil {
		spans = append(spans, timeLoc)
	}
	if dayLoc != nil {
		// swallow a connecting の after the day word
		end := dayLoc[1]
		if strings.HasPrefix(text[end:], "の") {
			end += len("の")
		}
		spans = append(spans, []int{dayLoc[0], end})

		switch day := text[dayLoc[0]:dayLoc[1]]; day {
		case "今日":
			// explicit, keep as-is even when already past
		case "明日", "あした":
			due = due.AddDate(0, 0, 1)
		case "明後日":
			due = due.AddDate(0, 0, 2)
		default:
			target := weekdayIndex[day[:3]] // first kanji of X曜日
			delta := (target - int(due.Weekday()) + 7) % 7
			if delta == 0 && !due.After(local) {
				delta = 7
			}
			due = due.AddDate(0, 0, delta)
		}
	} else if !due.After(local) {
		// bare time already past today rolls to tomorrow
		due = due.AddDate(0, 0, 1)
	}

	task := cleanTask(stripSpans(text, spans))
	if task == "" {
		return ReminderIntent{}, false
	}
	return ReminderIntent{DueAt: due.UTC(), Task: task}, true
}

// isCoarseTime reports whether a time match is one of the part-of-day
// words rather than an explicit clock time.
func isCoarseTime(s string) bool {
	switch s {
	case "朝", "昼", "夜":
		return true
	}
	return false
}

// stripSpans removes the given byte ranges from text.
func stripSpans(text string, spans [][]int) string {
	if len(spans) == 0 {
		return text
	}
	keep := make([]bool, len(text))
	for i := range keep {
		keep[i] = true
	}
	for _, sp := range spans {
		for i := sp[0]; i < sp[1] && i < len(keep); i++ {
			keep[i] = false
		}
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if keep[i] {
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

func cleanTask(s string) string {
	s = strings.TrimSpace(s)
	s = triggerRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " 　、。,.!！?？")
	for _, p := range []string{"に", "、"} {
		s = strings.TrimPrefix(s, p)
	}
	for _, p := range []string{"って", "を", "と"} {
		s = strings.TrimSuffix(s, p)
	}
	return strings.TrimSpace(s)
}

// normalizeDigits folds full-width digits into ASCII so the regexes above
// only deal with one form.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}
