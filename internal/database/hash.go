package database

import "encoding/binary"

// murmur2 is the 32-bit MurmurHash2 used by the runtime reflection library
// to hash names. Database hashes must match it bit for bit.
func murmur2(data []byte, seed uint32) uint32 {
	const (
		m = 0x5bd1e995
		r = 24
	)
	h := seed ^ uint32(len(data))

	for len(data) >= 4 {
		k := binary.LittleEndian.Uint32(data)
		k *= m
		k ^= k >> r
		k *= m
		h *= m
		h ^= k
		data = data[4:]
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}

// HashName returns the identity hash of a name. The empty string hashes to 0
// so that a zero Name means "no name".
func HashName(text string) uint32 {
	if text == "" {
		return 0
	}
	return murmur2([]byte(text), 0)
}

// MixHashes combines two hashes into one, seeding the hash of b with a.
func MixHashes(a, b uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], b)
	return murmur2(buf[:], a)
}
