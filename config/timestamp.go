package config

import "time"

type TimestampGenerator interface {
	Now() time.Time
}

type RealTimestampGenerator struct{}

func (t RealTimestampGenerator) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimestampGenerator always returns the same instant, in UTC
type FixedTimestampGenerator struct {
	Timestamp int64
}

func (t FixedTimestampGenerator) Now() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}
