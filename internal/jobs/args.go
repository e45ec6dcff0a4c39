// Package jobs provides the River job that runs digest passes on a schedule.
package jobs

// Digest triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// DigestJobArgs contains the arguments for a digest pass job.
type DigestJobArgs struct {
	// Trigger records what enqueued the pass: TriggerSchedule or TriggerManual.
	Trigger string `json:"trigger"`
}

// Kind returns the job type identifier for River
func (DigestJobArgs) Kind() string { return "triage_digest" }
