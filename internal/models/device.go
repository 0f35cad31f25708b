package models

// Device is a registered worker-safety device from the device registry.
type Device struct {
	ID         string `json:"id"`
	WorkerID   string `json:"workerId,omitempty"`
	WorkerName string `json:"workerName,omitempty"`
	Zone       string `json:"zone,omitempty"`
}

// MarkedSafeEvent is the outbound side effect emitted when an operator marks
// a device's worker safe.
type MarkedSafeEvent struct {
	DeviceID  string `json:"deviceId"`
	WorkerID  string `json:"workerId,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Operator  string `json:"operator"`
}
