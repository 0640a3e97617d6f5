package taskname

const (
	// License lifecycle events, consumed by cmd/worker.
	LicenseActivated   = "license:activated"
	LicenseDeactivated = "license:deactivated"
)
