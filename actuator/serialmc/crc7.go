package serialmc

// CRC-7 trailer used by the motor-controller wire protocol, polynomial 0x91.

const crc7Poly = 0x91

var crcTable [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		crcTable[i] = crcForByte(uint8(i))
	}
}

func crcForByte(val uint8) uint8 {
	for j := 0; j < 8; j++ {
		if val&1 != 0 {
			val ^= crc7Poly
		}
		val >>= 1
	}
	return val
}

func crc7(buf []byte) uint8 {
	var crc uint8
	for _, v := range buf {
		crc = crcTable[crc^v]
	}
	return crc & 0x7f
}
