package segy

import "math"

// ibmToFloat32 converts an IBM System/360 hexadecimal float (sign bit,
// 7-bit excess-64 base-16 exponent, 24-bit fraction) to IEEE float32.
func ibmToFloat32(bits uint32) float32 {
	if bits&0x7FFFFFFF == 0 {
		return 0
	}
	sign := 1.0
	if bits&0x80000000 != 0 {
		sign = -1.0
	}
	exp := int((bits >> 24) & 0x7F)
	frac := float64(bits&0x00FFFFFF) / float64(1<<24)
	return float32(sign * frac * math.Pow(16, float64(exp-64)))
}

// ibmFromFloat32 is the inverse conversion; tests synthesize IBM-format
// sample data with it. Values whose magnitude cannot be represented
// saturate the exponent.
func ibmFromFloat32(f float32) uint32 {
	if f == 0 {
		return 0
	}
	var sign uint32
	v := float64(f)
	if v < 0 {
		sign = 0x80000000
		v = -v
	}
	exp := 64
	for v >= 1 && exp < 127 {
		v /= 16
		exp++
	}
	for v < 1.0/16 && exp > 0 {
		v *= 16
		exp--
	}
	frac := uint32(math.Round(v * float64(1<<24)))
	if frac > 0x00FFFFFF {
		frac = 0x00FFFFFF
	}
	return sign | uint32(exp)<<24 | frac
}
