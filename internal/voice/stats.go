package voice

import "time"

// statAggregator batches client-reported quality samples for one participant so voice.user_stats is published at
// most once per StatsWindow (spec §4.7's "rate limited to one publish per user per window"), averaging whatever
// samples arrived in between rather than dropping them.
type statAggregator struct {
	windowStart time.Time
	count       int
	sum         StatSample
}

func newStatAggregator() *statAggregator {
	return &statAggregator{windowStart: time.Now()}
}

// Add folds sample into the running average for the current window. It returns the averaged sample and true once
// StatsWindow has elapsed since the window opened, at which point the caller should publish and the aggregator
// resets for the next window; otherwise it returns false and the sample is simply absorbed.
func (a *statAggregator) Add(sample StatSample) (StatSample, bool) {
	a.count++
	a.sum.LatencyMS += sample.LatencyMS
	a.sum.PacketLossPct += sample.PacketLossPct
	a.sum.JitterMS += sample.JitterMS
	a.sum.QualityScore += sample.QualityScore

	if time.Since(a.windowStart) < StatsWindow {
		return StatSample{}, false
	}

	n := float64(a.count)
	avg := StatSample{
		LatencyMS:     a.sum.LatencyMS / n,
		PacketLossPct: a.sum.PacketLossPct / n,
		JitterMS:      a.sum.JitterMS / n,
		QualityScore:  a.sum.QualityScore / n,
	}
	a.windowStart = time.Now()
	a.count = 0
	a.sum = StatSample{}
	return avg, true
}
