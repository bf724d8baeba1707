package repository

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when a handle does not exist so that unknown
// handles and wrong passwords take the same time to reject.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tasksync-dummy-password"), bcrypt.DefaultCost)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BurnPasswordCheck performs a comparison that always fails.
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
