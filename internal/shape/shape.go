// Package shape holds the integer arithmetic on static shapes shared by the
// tile resolver, the type converters and the unroll patterns.
package shape

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Product returns the number of elements of a static shape. The empty shape has one.
func Product(s []int64) int64 {
	return lo.Reduce(s, func(acc int64, d int64, _ int) int64 { return acc * d }, int64(1))
}

// Equal reports element-wise equality.
func Equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Ratio divides shape by tile dimension by dimension. It fails when the ranks
// differ or any dimension is not an exact positive multiple of the tile.
func Ratio(s, tile []int64) ([]int64, bool) {
	if len(s) != len(tile) {
		return nil, false
	}
	out := make([]int64, len(s))
	for i := range s {
		if tile[i] <= 0 || s[i] <= 0 || s[i]%tile[i] != 0 {
			return nil, false
		}
		out[i] = s[i] / tile[i]
	}
	return out, true
}

// MulElementwise multiplies two shapes of equal rank.
func MulElementwise(a, b []int64) []int64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("shape: rank mismatch %s * %s", String(a), String(b)))
	}
	return lo.Map(a, func(d int64, i int) int64 { return d * b[i] })
}

// Clone copies a shape, keeping nil as nil.
func Clone(s []int64) []int64 {
	if s == nil {
		return nil
	}
	out := make([]int64, len(s))
	copy(out, s)
	return out
}

// TileOffsets enumerates the origin of every tile of shape s in row-major order.
// The tile must divide s exactly.
func TileOffsets(s, tile []int64) [][]int64 {
	ratio, ok := Ratio(s, tile)
	if !ok {
		return nil
	}
	n := Product(ratio)
	out := make([][]int64, 0, n)
	idx := make([]int64, len(ratio))
	for k := int64(0); k < n; k++ {
		out = append(out, MulElementwise(idx, tile))
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < ratio[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// String renders a shape as 8x16.
func String(s []int64) string {
	return strings.Join(lo.Map(s, func(d int64, _ int) string { return fmt.Sprint(d) }), "x")
}
