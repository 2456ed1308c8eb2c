package domain

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

var mealBuckets = []struct {
	fromH, toH int
	label      string
	dishes     []string
}{
	{4, 11, "朝ごはん", []string{"トースト", "おにぎり", "卵かけご飯"}},
	{11, 16, "お昼ごはん", []string{"うどん", "パスタ", "チャーハン"}},
	{16, 28, "晩ごはん", []string{"カレー", "唐揚げ", "生姜焼き"}}, // 16:00〜翌4:00
}

// MealBucket returns the meal label and dish candidates for an hour of day
// in JST.
func MealBucket(hour int) (label string, dishes []string) {
	for _, b := range mealBuckets {
		h := hour
		if h < 4 {
			h += 24
		}
		if h >= b.fromH && h < b.toH {
			return b.label, b.dishes
		}
	}
	return mealBuckets[2].label, mealBuckets[2].dishes
}

// IsMealRequest reports whether the text asks for a meal suggestion.
func IsMealRequest(text string) bool {
	return strings.Contains(text, "ご飯") || strings.Contains(text, "ごはん")
}

// SuggestMeal picks a dish for the time of day and returns the suggestion
// text with a recipe search link.
func SuggestMeal(now time.Time, rng *rand.Rand) string {
	label, dishes := MealBucket(now.In(jst).Hour())
	dish := dishes[rng.Intn(len(dishes))]
	searchURL := "https://www.google.com/search?q=" + url.QueryEscape(dish+" 簡単 作り方")
	return fmt.Sprintf("今日の%sは「%s」なんてどう？\n作り方はこのあたりが参考になるかも！\n%s", label, dish, searchURL)
}
