package util

import (
	"math"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func ReverseG[T any](arr []T) []T {
	copyArr := make([]T, len(arr)) // should do on the copy )
	copy(copyArr, arr)
	for i, j := 0, len(copyArr)-1; i < j; i, j = i+1, j-1 {
		copyArr[i], copyArr[j] = copyArr[j], copyArr[i]
	}
	return copyArr
}

// SortedUnion returns the sorted, duplicate-free union of a and b.
func SortedUnion[T constraints.Ordered](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// SetEqual reports whether a and b hold the same elements, ignoring order and multiplicity.
func SetEqual[T constraints.Ordered](a, b []T) bool {
	return slices.Equal(SortedUnion(a, nil), SortedUnion(b, nil))
}

// HasDuplicates reports whether any element occurs more than once in arr.
func HasDuplicates[T comparable](arr []T) bool {
	seen := make(map[T]struct{}, len(arr))
	for _, v := range arr {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
