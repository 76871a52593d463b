package coordinator

const (
	// MetricRegistrationsTotal total Register outcomes, per §10.
	MetricRegistrationsTotal = "registrations_total"
	// MetricHealthGateWaitSeconds time spent in WaitForHealthy, per §10.
	MetricHealthGateWaitSeconds = "health_gate_wait_seconds"

	// LabelKind registrant kind (SERVICE|MODULE).
	LabelKind = "kind"
	// LabelResult pipeline outcome (completed|failed).
	LabelResult = "result"
)
