package random

import (
	"math/rand/v2"
)

const (
	CharsetAlphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CharsetDigits       = "0123456789"
)

func String(r *rand.Rand, options string, length int) (s string) {
	rOptions := []rune(options)

	var temp = make([]rune, length)
	for index := range temp {
		temp[index] = rOptions[r.IntN(len(rOptions))]
	}
	return string(temp)
}

// Id builds an opaque identifier such as "rl_Xq3..." from a cryptographic source
func Id(prefix string, length int) (id string) {
	return prefix + "_" + String(CryptoRand(), CharsetAlphaNumeric, length)
}
