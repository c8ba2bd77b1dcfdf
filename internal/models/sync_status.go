package models

// DeviceSyncState is the current fleet-level sync state of a device: what the
// last known (or ongoing) attempt left it in.
type DeviceSyncState string

const (
	DeviceStatePending DeviceSyncState = "PENDING"
	DeviceStateSuccess DeviceSyncState = "SUCCESS"
	DeviceStateFailed  DeviceSyncState = "FAILED"
)

// Valid reports whether s is one of the three known states.
func (s DeviceSyncState) Valid() bool {
	switch s {
	case DeviceStatePending, DeviceStateSuccess, DeviceStateFailed:
		return true
	}
	return false
}

// AttemptOutcome is the point-in-time result recorded on a single sync log
// entry. It shares the value set of DeviceSyncState but a log's outcome is a
// historical record, not mutable fleet state.
type AttemptOutcome string

const (
	OutcomePending AttemptOutcome = "PENDING"
	OutcomeSuccess AttemptOutcome = "SUCCESS"
	OutcomeFailed  AttemptOutcome = "FAILED"
)

// Terminal reports whether o is a final outcome. A log never leaves a
// terminal outcome once it has one.
func (o AttemptOutcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailed
}

// SyncType selects how much data a sync attempt transfers.
type SyncType string

const (
	SyncTypeFull  SyncType = "FULL"
	SyncTypeDelta SyncType = "DELTA"
)

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	return t == SyncTypeFull || t == SyncTypeDelta
}
