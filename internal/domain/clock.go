package domain

import "time"

// All user-facing times are interpreted in JST regardless of where the
// process runs. Reminder due times are converted to UTC for storage.
var jst = loadJST()

func loadJST() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// JST returns the fixed reference timezone.
func JST() *time.Location { return jst }
