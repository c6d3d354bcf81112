package pipeline

import (
	"golang.org/x/sync/semaphore"
)

// StageLimits holds the process-wide counting permits for the two pipeline
// stages with an external resource cost. Parse contends for host CPU;
// embed contends for a shared GPU-backed model service. The two permits
// are independent and must never be held at the same time, so contention
// on one scarce resource cannot block the other.
type StageLimits struct {
	Parse *semaphore.Weighted
	Embed *semaphore.Weighted
}

// NewStageLimits creates stage permits with the given capacities.
func NewStageLimits(parseLimit, embedLimit int64) *StageLimits {
	if parseLimit < 1 {
		parseLimit = 1
	}
	if embedLimit < 1 {
		embedLimit = 1
	}
	return &StageLimits{
		Parse: semaphore.NewWeighted(parseLimit),
		Embed: semaphore.NewWeighted(embedLimit),
	}
}
