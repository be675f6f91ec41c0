package session

import "crypto/rand"

// generateCode returns a random 6-digit decimal code. Leading zeros are
// allowed, so the space is 000000–999999.
func generateCode() string {
	const digits = "0123456789"
	b := make([]byte, 6)
	rand.Read(b)
	for i := range b {
		b[i] = digits[int(b[i])%len(digits)]
	}
	return string(b)
}

// uniqueCode generates a code that doesn't collide with any registered
// session. Must be called while holding mu.
func (r *Registry) uniqueCode() string {
	for {
		code := generateCode()
		if _, taken := r.sessions[code]; !taken {
			return code
		}
	}
}
