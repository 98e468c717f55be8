package series

import "time"

// Resample aggregates points into one-minute buckets, taking the mean
// of each bucket's values, and forward-fills buckets with no readings
// from the last populated bucket. The elapsed offset is averaged and
// carried forward the same way. Input must be sorted by time.
func Resample(points []Point) []Point {
	if len(points) == 0 {
		return points
	}

	first := points[0].Time.Truncate(time.Minute)
	last := points[len(points)-1].Time.Truncate(time.Minute)
	n := int(last.Sub(first)/time.Minute) + 1

	out := make([]Point, 0, n)
	i := 0
	var lastSeen Point
	haveLast := false

	for bucket := first; !bucket.After(last); bucket = bucket.Add(time.Minute) {
		next := bucket.Add(time.Minute)

		var sumV, sumE float64
		count := 0
		for i < len(points) && points[i].Time.Before(next) {
			sumV += points[i].Value
			sumE += points[i].Elapsed
			count++
			i++
		}

		switch {
		case count > 0:
			lastSeen = Point{
				Time:    bucket,
				Value:   sumV / float64(count),
				Elapsed: sumE / float64(count),
			}
			haveLast = true
			out = append(out, lastSeen)
		case haveLast:
			out = append(out, Point{
				Time:    bucket,
				Value:   lastSeen.Value,
				Elapsed: lastSeen.Elapsed,
			})
		}
	}

	return out
}
