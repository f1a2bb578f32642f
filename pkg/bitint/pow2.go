// SPDX-License-Identifier: MIT
/*
Package bitint holds the power-of-two helpers used when sizing analysis
blocks. Any block length works with the FFT, but powers of two take the
fast radix-2 path, so configuration checks and suggests them.

	bitint.IsPowerOfTwo(2048)   // true
	bitint.NextPowerOfTwo(1000) // 1024
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, and 1 for
// size <= 0. Powers of two map to themselves: Len(size-1) is the shift that
// reaches size exactly, whereas Len(size) would double it.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has one bit set, so clearing its lowest set bit with n&(n-1) leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
