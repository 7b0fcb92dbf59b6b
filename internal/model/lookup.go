package model

import "time"

// Source is reported on every lookup result.
const Source = "ASCE Hazard Tool"

// LookupRequest is the body of POST /api/wind-speed.
type LookupRequest struct {
	Address string `json:"address" binding:"notblank"`
}

// Screenshot is a diagnostic capture of the page, base64-encoded PNG.
type Screenshot struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// Result is the outcome of one wind-speed lookup. Success and failure share
// the shape; the value fields are only set on success.
type Result struct {
	Address     string       `json:"address"`
	WindSpeed   *int         `json:"windSpeed,omitempty"`
	Vmph        *int         `json:"vmph,omitempty"`
	Source      string       `json:"source"`
	RetrievedAt time.Time    `json:"retrievedAt"`
	Success     bool         `json:"success"`
	RawValue    string       `json:"rawValue,omitempty"`
	Error       string       `json:"error,omitempty"`
	Screenshots []Screenshot `json:"screenshots,omitempty"`
}

// Succeeded builds a success result for the parsed value.
func Succeeded(address, raw string, value int, at time.Time, shots []Screenshot) Result {
	ws, vmph := value, value
	return Result{
		Address:     address,
		WindSpeed:   &ws,
		Vmph:        &vmph,
		Source:      Source,
		RetrievedAt: at,
		Success:     true,
		RawValue:    raw,
		Screenshots: shots,
	}
}

// Failed builds a failure result carrying the error message.
func Failed(address string, err error, at time.Time, shots []Screenshot) Result {
	return Result{
		Address:     address,
		Source:      Source,
		RetrievedAt: at,
		Success:     false,
		Error:       err.Error(),
		Screenshots: shots,
	}
}
