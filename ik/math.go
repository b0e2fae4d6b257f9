package ik

import "math"

func acos(x float32) float32 {
	return float32(math.Acos(float64(x)))
}
