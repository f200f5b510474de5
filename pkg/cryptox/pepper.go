package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Argon2id parameters. Changing them only affects new hashes, the PHC
// string carries the parameters it was made with.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile = filepath.Join(os.TempDir(), "twostep", "pepper")
)

// SetPepperPath points the pepper loader at file and forgets any pepper
// already loaded.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepperFile = filepath.Clean(file)
	pepper = ""
}

// LoadPepper reads the pepper file, creating it with fresh randomness if it
// does not exist yet. Call it once at startup so a bad path fails fast.
func LoadPepper() (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper, nil
	}

	p, err := readOrCreatePepper(pepperFile)
	if err != nil {
		return "", err
	}
	pepper = p
	return pepper, nil
}

func currentPepper() (string, error) {
	return LoadPepper()
}

func readOrCreatePepper(file string) (string, error) {
	raw, err := readOrCreateSecret(file, "pepper")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// readOrCreateSecret reads file, or fills it with keyLength random bytes,
// base64url encoded, when it does not exist yet.
func readOrCreateSecret(file, name string) ([]byte, error) {
	raw, err := os.ReadFile(file) // #nosec G304 - operator supplied path
	switch {
	case err == nil:
		if len(raw) == 0 {
			return nil, fmt.Errorf("cryptox: %s file %s is empty", name, file)
		}
		return raw, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return nil, fmt.Errorf("cryptox: create %s dir: %w", name, err)
	}

	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: generate %s: %w", name, err)
	}
	secret := []byte(base64.RawURLEncoding.EncodeToString(buf))

	if err := os.WriteFile(file, secret, 0o600); err != nil {
		return nil, fmt.Errorf("cryptox: write %s: %w", name, err)
	}
	return secret, nil
}
