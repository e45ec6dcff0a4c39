package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// DefaultDigestInterval is how often the scheduled digest pass runs when no interval is configured.
const DefaultDigestInterval = 24 * time.Hour

// PeriodicDigestJob schedules a digest pass every interval, with one pass as soon as the client starts.
func PeriodicDigestJob(interval time.Duration) *river.PeriodicJob {
	if interval <= 0 {
		interval = DefaultDigestInterval
	}

	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return DigestJobArgs{Trigger: TriggerSchedule}, digestInsertOpts()
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
