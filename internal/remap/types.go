package remap

// Sample is a single time-series entry as returned by the REMAP API.
// Value is a pointer so a sample missing the field can be told apart
// from a genuine zero reading.
type Sample struct {
	Value *float64 `json:"value"`
	Date  string   `json:"date"`
	Code  string   `json:"code"`
}
