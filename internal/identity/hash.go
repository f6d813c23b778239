// Package identity derives every per-persona property from a single stable
// hash of the persona id. Schedule slot, awake hours, activity rates and
// voice all consume the same hash through disjoint divisors and moduli, so
// properties vary independently across the population without any per-persona
// storage.
package identity

// Hash maps an opaque persona id to a stable 32-bit integer using the
// classic 31-multiplier rolling hash over the id's code points. The value is
// identical on every call, on every machine, for the life of the id. An
// empty id hashes to 0.
func Hash(id string) int32 {
	var h int32
	for _, r := range id {
		h = h*31 + int32(r)
	}
	return h
}

// abs returns |Hash(id)| widened to int64 so MinInt32 cannot overflow.
func abs(id string) int64 {
	v := int64(Hash(id))
	if v < 0 {
		v = -v
	}
	return v
}

// Bucket maps an id to a bucket in [0, n). Invalid n degrades to 0.
func Bucket(id string, n int) int {
	if n <= 0 {
		return 0
	}
	return int(abs(id) % int64(n))
}

// Slice maps an id to a value in [0, n) using a divisor to select a
// different region of the hash than Bucket does. Callers deriving unrelated
// properties must use distinct divisors so the properties do not correlate.
func Slice(id string, divisor, n int) int {
	if divisor <= 0 || n <= 0 {
		return 0
	}
	return int((abs(id) / int64(divisor)) % int64(n))
}
