package mem

// ByteEnable expands an n-bit byte-enable mask into one flag per byte. Bit i
// of the mask enables byte lane i.
func ByteEnable(mask uint8, n int) []bool {
	lanes := make([]bool, n)
	for i := 0; i < n && i < 8; i++ {
		lanes[i] = mask&(1<<i) != 0
	}

	return lanes
}

// FullMask returns a dirty mask that enables all n bytes.
func FullMask(n int) []bool {
	lanes := make([]bool, n)
	for i := range lanes {
		lanes[i] = true
	}

	return lanes
}

// MergeMasked copies the enabled bytes of src into dst, starting at offset.
// A nil mask enables every byte.
func MergeMasked(dst []byte, offset uint64, src []byte, mask []bool) {
	for i, b := range src {
		if mask != nil && !mask[i] {
			continue
		}

		dst[offset+uint64(i)] = b
	}
}
