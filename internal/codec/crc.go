package codec

// CRC8 computes an MSB-first CRC-8 over data
func CRC8(data []byte, poly, init byte) byte {
	crc := init
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC16 computes an MSB-first CRC-16 over data
func CRC16(data []byte, poly, init uint16) uint16 {
	crc := init
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// LFSRDigest16 computes the Galois LFSR digest used by Bresser sensors.
// Every set message bit (MSB first) XORs the current key into the sum,
// then the key shifts right, folding in gen when its low bit was set.
func LFSRDigest16(data []byte, gen, key uint16) uint16 {
	var sum uint16
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			if (b>>i)&1 == 1 {
				sum ^= key
			}
			if key&1 == 1 {
				key = (key >> 1) ^ gen
			} else {
				key >>= 1
			}
		}
	}
	return sum
}

// AddBytes sums all bytes
func AddBytes(data []byte) int {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum
}

// XorBytes folds all bytes with XOR
func XorBytes(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// PopCount counts set bits across data
func PopCount(data []byte) int {
	n := 0
	for _, b := range data {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}
