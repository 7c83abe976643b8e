// Package ladder implements the size ladder and chunking law: the
// consensus-critical map from an input length to an ordered vector of
// target capsule sizes.
package ladder

const (
	KB = 1024
	MB = 1024 * KB
)

// Sizes is the fixed, consensus-critical set of legal capsule sizes, largest
// last. No other size is a legal capsule_size.
var Sizes = [5]uint64{
	256 * KB,
	1 * MB,
	10 * MB,
	100 * MB,
	1000 * MB,
}

// Smallest and Largest name the ends of the ladder for readability at call
// sites that special-case the tail chunk or the overflow chunk.
const (
	smallestIndex = 0
	largestIndex  = len(Sizes) - 1
)

var (
	Smallest = Sizes[smallestIndex]
	Largest  = Sizes[largestIndex]
)

// IsLegalSize reports whether size is one of the five ladder entries.
func IsLegalSize(size uint64) bool {
	for _, s := range Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Plan walks the ladder largest-first, greedily consuming totalSize, then
// appends one trailing Smallest entry for any remainder. An input of zero
// plans to a single Smallest entry (the empty-capsule case handled by the
// pipeline). The returned slice also defines chunk indices: Plan(n)[i] is
// the target size for capsule i.
func Plan(totalSize uint64) []uint64 {
	if totalSize == 0 {
		return []uint64{Smallest}
	}

	var plan []uint64
	remaining := totalSize

	for i := largestIndex; i >= 0; i-- {
		size := Sizes[i]
		for remaining >= size {
			plan = append(plan, size)
			remaining -= size
		}
	}

	if remaining > 0 {
		plan = append(plan, Smallest)
	}

	return plan
}
