package rates

import "time"

// LatestBucket is the bucket shared by today and every future date.
const LatestBucket = "latest"

const bucketLayout = "2006-01-02"

// BucketFor returns the cache key for date: LatestBucket when date falls on the
// same calendar day as now or later, otherwise the date as YYYY-MM-DD.
// date is a calendar date and is read in its own location; now is converted to
// loc (UTC when nil) to find today.
func BucketFor(date, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	day := dateOnly(date)
	today := dateOnly(now.In(loc))
	if !day.Before(today) {
		return LatestBucket
	}
	return day.Format(bucketLayout)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
