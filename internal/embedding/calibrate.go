package embedding

// Calibration of raw cosine similarity into the shared [0,1] confidence
// space used across all tiers.
//
// Static embeddings put unrelated utterances around 0.1-0.3 similarity and
// near-paraphrases around 0.7-0.9, so the raw score is neither zero-anchored
// nor comparable to a lexical hit. The mapping below is a piecewise-linear
// ramp:
//
//	sim <= simFloor          -> 0.0   (noise, no signal)
//	sim >= simCeil           -> confCeil
//	otherwise                -> confCeil * (sim-simFloor)/(simCeil-simFloor)
//
// confCeil sits below the auto-execute default (0.95) on purpose: a purely
// semantic match should ask before executing. The constants are the
// documented calibration, not tunables scattered through call sites; tests
// pin the curve's anchor points.
const (
	simFloor = 0.30
	simCeil  = 0.95
	confCeil = 0.93
)

// Calibrate maps a raw cosine similarity to a [0,1] confidence.
// Pure and monotonic; negative similarities clamp to 0.
func Calibrate(sim float64) float64 {
	if sim <= simFloor {
		return 0
	}
	if sim >= simCeil {
		return confCeil
	}
	return confCeil * (sim - simFloor) / (simCeil - simFloor)
}
