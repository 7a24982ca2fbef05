package marketdata

import "time"

// aggregatePoints buckets base into bars of interval. base must be sorted by
// time.
func aggregatePoints(base []Point, interval time.Duration) []Point {
	step := int64(interval.Seconds())
	if step <= 0 || len(base) == 0 {
		return nil
	}
	out := make([]Point, 0, len(base))
	var bucket int64 = -1
	var cur Point
	for _, p := range base {
		b := p.Time - (p.Time % step)
		if bucket != b {
			if bucket >= 0 {
				out = append(out, cur)
			}
			bucket = b
			cur = Point{Time: b, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume}
			continue
		}
		if p.High > cur.High {
			cur.High = p.High
		}
		if p.Low < cur.Low {
			cur.Low = p.Low
		}
		cur.Close = p.Close
		cur.Volume += p.Volume
	}
	if bucket >= 0 {
		out = append(out, cur)
	}
	return out
}

func trimPoints(points []Point, limit int) []Point {
	if limit <= 0 || len(points) <= limit {
		return points
	}
	return points[len(points)-limit:]
}
