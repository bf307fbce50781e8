package talc

// Utilization returns the ratio of allocated bytes to claimed bytes, in
// [0.0, 1.0]. Returns 0 if nothing has been claimed yet.
func (c *Counters) Utilization() float64 {
	if c.ClaimedBytes == 0 {
		return 0
	}
	return float64(c.AllocatedBytes) / float64(c.ClaimedBytes)
}

// FragmentationRatio returns the ratio of available (free, unallocated)
// bytes to claimed bytes, in [0.0, 1.0]. Returns 0 if nothing has been
// claimed yet. A high ratio alongside a high FragmentCount suggests the
// free space is scattered across many small gaps rather than sitting in a
// few large ones.
func (c *Counters) FragmentationRatio() float64 {
	if c.ClaimedBytes == 0 {
		return 0
	}
	return float64(c.AvailableBytes) / float64(c.ClaimedBytes)
}

// Metrics is a convenience snapshot combining Counters with its derived
// ratios, for callers that want a single value to log or export.
type Metrics struct {
	Counters
	Utilization        float64
	FragmentationRatio float64
}

// Snapshot returns a Metrics combining the engine's current Counters with
// their derived ratios.
func (e *Engine) Snapshot() Metrics {
	c := *e.Counters()
	return Metrics{
		Counters:           c,
		Utilization:        c.Utilization(),
		FragmentationRatio: c.FragmentationRatio(),
	}
}
