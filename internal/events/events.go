package events

// Hooks fired by services after a successful commit. Unset hooks are
// skipped; they run on the caller's goroutine and must not block.
var (
	// OnInstancesGenerated receives the ids of the instances created by one
	// generation call.
	OnInstancesGenerated func(tenantID, date string, instanceIDs []uint)

	// OnInstanceSubmitted is called once per submitted instance.
	OnInstanceSubmitted func(tenantID string, instanceID uint)
)
