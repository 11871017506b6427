package rover

// degreesDelta returns the signed angular distance from headingFrom to
// headingTo, normalized to (-180, 180] (spec.md invariant 7).
// Grounded on original_source/src/state_machine/rotation_state.rs's
// degrees_delta.
func degreesDelta(headingFrom, headingTo float32) float32 {
	delta := headingTo - headingFrom
	if delta > 180 {
		delta -= 360
	} else if delta <= -180 {
		delta += 360
	}
	return delta
}

// absDegrees returns the magnitude of a signed angular delta.
func absDegrees(delta float32) float32 {
	if delta < 0 {
		return -delta
	}
	return delta
}
