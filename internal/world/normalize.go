package world

// Normalize rescales a field in place to [0, 1] using its own min and max.
// A constant field has range 0, which is replaced by 1, so every value maps to 0.
// Running it on an already-normalized field leaves the field unchanged.
func Normalize(field []float64) {
	if len(field) == 0 {
		return
	}

	lo, hi := field[0], field[0]
	for _, v := range field[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	if span == 0 {
		span = 1
	}
	for i, v := range field {
		field[i] = (v - lo) / span
	}
}
