package gateway

import "classtrack/internal/scan"

// Inbound frame from a device.
type inbound struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	RFIDTag  string `json:"rfidTag,omitempty"`
}

const (
	msgAuthenticate = "authenticate"
	msgRFIDScan     = "rfid_scan"
)

// authResult acknowledges an authenticate frame.
type authResult struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// scanEnvelope wraps a pipeline result as a scan_result frame.
type scanEnvelope struct {
	Type string `json:"type"`
	scan.Result
}

func newScanEnvelope(res scan.Result) scanEnvelope {
	return scanEnvelope{Type: "scan_result", Result: res}
}

// deviceStatus is broadcast to dashboard listeners on connectivity
// transitions.
type deviceStatus struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
	Status   string `json:"status"`
}
