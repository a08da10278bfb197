package protocol

// cipherSeed is the initial key of the autokey XOR stream. Fixed by the
// firmware; every Kasa-generation device uses the same value.
const cipherSeed byte = 171

// Encrypt obfuscates a plaintext payload. Each ciphertext byte is the
// previous ciphertext byte (the seed for the first) XORed with the
// plaintext byte. The input is not modified.
func Encrypt(plaintext []byte) []byte {
	ciphertext := make([]byte, len(plaintext))
	key := cipherSeed
	for i, b := range plaintext {
		ciphertext[i] = key ^ b
		key = ciphertext[i]
	}
	return ciphertext
}

// Decrypt reverses Encrypt. The rolling key advances from the ciphertext
// byte on both sides, which is what makes the two transforms mutual
// inverses.
func Decrypt(ciphertext []byte) []byte {
	plaintext := make([]byte, len(ciphertext))
	key := cipherSeed
	for i, b := range ciphertext {
		plaintext[i] = key ^ b
		key = b
	}
	return plaintext
}
