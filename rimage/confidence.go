package rimage

// Confidence is the per pixel reliability classification reported by a depth sensor.
type Confidence uint8

// Raw confidence values as stored in a confidence plane. Anything else is unclassified.
const (
	ConfidenceLow    Confidence = 0
	ConfidenceMedium Confidence = 1
	ConfidenceHigh   Confidence = 2
	// ConfidenceNone marks a value the sensor did not classify.
	ConfidenceNone Confidence = 0xFF
)

// Classify maps a raw plane value to a known level, or ConfidenceNone.
func (c Confidence) Classify() Confidence {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c
	default:
		return ConfidenceNone
	}
}

func (c Confidence) String() string {
	switch c.Classify() {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "none"
	}
}
