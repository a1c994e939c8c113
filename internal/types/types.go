// Package types contains shared type definitions used across the radiation_exporter packages.
package types

import (
	"math/rand"
	"time"
)

// DefaultScanInterval is how often a station is refreshed unless configured otherwise.
const DefaultScanInterval = 3600 * time.Second

// StationConfig is the immutable per-station configuration.
type StationConfig struct {
	Code         string        `json:"station_code"`
	Name         string        `json:"station_name"`
	ScanInterval time.Duration `json:"scan_interval"`
}

// Obfuscation holds the per-installation de-scaling parameters. The REMAP API
// scales returned values by a per-client factor selected by the stamp request
// header; divisor inverts that scaling. The stamp is drawn once when a station
// is set up and stays fixed for the lifetime of that installation.
type Obfuscation struct {
	Stamp   int `json:"stamp"`
	Divisor int `json:"divisor"`
}

// NewObfuscation draws a random stamp in [20, 999] and derives the divisor
// as 1001 - stamp (range [2, 981]).
func NewObfuscation() Obfuscation {
	stamp := 20 + rand.Intn(980)
	return Obfuscation{
		Stamp:   stamp,
		Divisor: 1001 - stamp,
	}
}

// Reading is the latest fetch result for a station. It is replaced wholesale
// on every successful fetch and retained unchanged across failed ones.
type Reading struct {
	Value        float64 `json:"value"`
	RawValue     float64 `json:"raw_value"`
	Timestamp    string  `json:"timestamp"`
	StationCode  string  `json:"station_code"`
	ReturnedCode string  `json:"returned_code"`
	Stamp        int     `json:"stamp"`
	Divisor      int     `json:"divisor"`
	// Status is set only on the synthetic "no data" placeholder.
	Status string `json:"status,omitempty"`
}
