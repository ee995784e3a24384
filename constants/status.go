package constants

// JobStatus is the canonical status for rows in extract_job and for records.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning JobStatus = "RUNNING" // in progress
	JobStatusOK      JobStatus = "OK"      // extracted and cleaned
	JobStatusReused  JobStatus = "REUSED"  // cleaned values taken from an earlier run
	JobStatusFailed  JobStatus = "FAILED"  // extraction failed, record holds defaults
	JobStatusRunDone JobStatus = "DONE"    // extract_run finished
)

// Remote extraction job states reported by the service.
const (
	RemotePending        = "PENDING"
	RemoteSuccess        = "SUCCESS"
	RemotePartialSuccess = "PARTIAL_SUCCESS"
	RemoteError          = "ERROR"
	RemoteCancelled      = "CANCELLED"
)
