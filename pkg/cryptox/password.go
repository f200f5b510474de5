package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordMismatch is returned when a password does not match its hash.
	ErrPasswordMismatch = errors.New("cryptox: password does not match")

	// ErrHashFormat is returned for hashes that are neither PHC argon2id
	// nor bcrypt.
	ErrHashFormat = errors.New("cryptox: unrecognised password hash")
)

// HashPassword returns a PHC-format argon2id hash of the peppered password.
func HashPassword(password string) (string, error) {
	p, err := currentPepper()
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password+p), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyPassword checks password against encoded. Argon2id hashes are
// peppered. Bcrypt hashes ($2a$, $2b$, $2y$) are accepted so operators can
// seed users hashed with htpasswd; those are compared without the pepper.
func VerifyPassword(password, encoded string) error {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return verifyArgon2id(password, encoded)
}

// CheckPassword is VerifyPassword reduced to a yes or no.
func CheckPassword(password, encoded string) bool {
	return VerifyPassword(password, encoded) == nil
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// BurnPasswordCheck runs one full argon2id verification against a throwaway
// hash. Callers use it for unknown usernames so that a miss costs the same
// as a wrong password.
func BurnPasswordCheck(password string) {
	decoyOnce.Do(func() {
		h, err := HashPassword(rand.Text())
		if err != nil {
			// Fall back to a static hash with the same parameters.
			h = "$argon2id$v=19$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$" +
				"aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
		}
		decoyHash = h
	})
	_ = verifyArgon2id(password, decoyHash)
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// verifyArgon2id parses $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func verifyArgon2id(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return fmt.Errorf("%w: expected 6 fields", ErrHashFormat)
	}
	if parts[1] != "argon2id" {
		return fmt.Errorf("%w: algorithm %q", ErrHashFormat, parts[1])
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return fmt.Errorf("%w: version %q", ErrHashFormat, parts[2])
	}

	var (
		mem, iters uint32
		par        uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrHashFormat, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrHashFormat, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: hash: %v", ErrHashFormat, err)
	}

	p, err := currentPepper()
	if err != nil {
		return err
	}

	got := argon2.IDKey([]byte(password+p), salt, iters, mem, par,
		uint32(len(want))) // #nosec G115 - decoded hash length is small

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
