package flate

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"testing"
)

func TestCanonicalRFCExample(t *testing.T) {
	// RFC 1951 section 3.2.2: ABCDEFGH with lengths (3, 3, 3, 3, 3, 2, 4, 4)
	lengths := []uint8{3, 3, 3, 3, 3, 2, 4, 4}
	want := []string{"010", "011", "100", "101", "110", "00", "1110", "1111"}

	codes, maxBits, ok := canonicalCodes(lengths)
	if !ok {
		t.Fatal("rejected a valid code")
	}
	if maxBits != 4 {
		t.Errorf("maxBits %d", maxBits)
	}
	for sym, n := range lengths {
		got := fmt.Sprintf("%0*b", n, codes[sym])
		if got != want[sym] {
			t.Errorf("symbol %c: got %s want %s", 'A'+sym, got, want[sym])
		}
	}
}

// randomLengths makes a complete code by splitting leaves of a random tree.
func randomLengths(rng *rand.Rand, nsym int) []uint8 {
	leaves := []uint8{0}
	for len(leaves) < nsym {
		i := rng.IntN(len(leaves))
		if leaves[i] == maxCodeLen {
			continue
		}
		leaves[i]++
		leaves = append(leaves, leaves[i])
	}
	lengths := make([]uint8, nsym+rng.IntN(10)) // some unused symbols too
	for i, p := range rng.Perm(len(lengths))[:nsym] {
		lengths[p] = leaves[i]
	}
	return lengths
}

func TestCanonicalKraftEquality(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 1951))
	for i := range 200 {
		lengths := randomLengths(rng, 2+rng.IntN(280))
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			codes, maxBits, ok := canonicalCodes(lengths)
			if !ok {
				t.Fatal("rejected a complete code")
			}

			sum := 0
			for _, n := range lengths {
				if n != 0 {
					sum += 1 << (maxBits - uint(n))
				}
			}
			if sum != 1<<maxBits {
				t.Fatalf("Kraft sum %d, want %d", sum, 1<<maxBits)
			}

			// reference: sort symbols by (length, index) and count upward
			code, prevLen := 0, uint8(0)
			first := true
			for n := uint8(1); n <= maxCodeLen; n++ {
				for sym, l := range lengths {
					if l != n {
						continue
					}
					if !first {
						code++
					}
					code <<= n - prevLen
					prevLen, first = n, false
					if int(codes[sym]) != code {
						t.Fatalf("symbol %d (len %d): got %b want %b", sym, n, codes[sym], code)
					}
				}
			}
		})
	}
}

func TestCanonicalOversubscribed(t *testing.T) {
	for _, lengths := range [][]uint8{
		{1, 1, 1},
		{2, 2, 2, 2, 2},
		{1, 2, 3, 3, 3},
		{16},
	} {
		if _, _, ok := canonicalCodes(lengths); ok {
			t.Errorf("%v should be rejected", lengths)
		}
	}
	// incomplete is fine
	if _, _, ok := canonicalCodes([]uint8{1}); !ok {
		t.Error("single code of length 1 should be accepted")
	}
	if _, _, ok := canonicalCodes([]uint8{0, 0, 0}); !ok {
		t.Error("empty code should be accepted")
	}
}

func TestTableLookup(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	var tab table
	for range 50 {
		lengths := randomLengths(rng, 2+rng.IntN(30))
		if !tab.build(lengths) {
			t.Fatal("build failed")
		}
		codes, maxBits, _ := canonicalCodes(lengths)
		if len(tab.entries) != 1<<maxBits {
			t.Fatalf("table has %d entries, want %d", len(tab.entries), 1<<maxBits)
		}
		for sym, n := range lengths {
			if n == 0 {
				continue
			}
			// stream order: the code's first bit is the lowest bit of the index
			idx := bits.Reverse16(codes[sym]) >> (16 - n)
			for pad := range 1 << (maxBits - uint(n)) {
				e := tab.entries[int(idx)|pad<<n]
				if int(e>>tableValueShift) != sym || uint8(e&tableCountMask) != n {
					t.Fatalf("symbol %d: entry %#x", sym, e)
				}
			}
		}
		for i, e := range tab.entries {
			if e == 0 {
				t.Fatalf("complete code left slot %d empty", i)
			}
		}
	}
}

func TestFixedTables(t *testing.T) {
	fixedTablesInit()
	if fixedLit.maxBits != 9 || fixedDst.maxBits != 5 {
		t.Fatalf("maxBits %d %d", fixedLit.maxBits, fixedDst.maxBits)
	}
	for _, tc := range []struct {
		sym  int
		code uint16
		n    uint8
	}{
		{0, 0x30, 8},
		{143, 0xbf, 8},
		{144, 0x190, 9},
		{255, 0x1ff, 9},
		{256, 0, 7},
		{279, 0x17, 7},
		{280, 0xc0, 8},
		{287, 0xc7, 8},
	} {
		idx := bits.Reverse16(tc.code) >> (16 - tc.n)
		e := fixedLit.entries[idx]
		if int(e>>tableValueShift) != tc.sym || uint8(e&tableCountMask) != tc.n {
			t.Errorf("symbol %d: entry %#x", tc.sym, e)
		}
	}
}
