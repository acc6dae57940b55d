package secret

import (
	"os"
	"strings"
)

// SecretStore keeps sensitive values such as database passwords out of
// the config file.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// EnvPrefix prefixes the variables read by EnvStore.
const EnvPrefix = "SNIPPETS_SECRET_"

// EnvStore reads secrets from SNIPPETS_SECRET_<KEY> variables. Set and
// Delete only affect the current process.
type EnvStore struct{}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

func (EnvStore) Set(key string, value []byte) error {
	return os.Setenv(envName(key), string(value))
}

func (EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(envName(key))
	if !ok || v == "" {
		return nil, nil
	}
	return []byte(v), nil
}

func (EnvStore) Delete(key string) error {
	return os.Unsetenv(envName(key))
}

// Chain looks a key up in each store in turn. Writes go to the first store.
type Chain []SecretStore

func (c Chain) Get(key string) ([]byte, error) {
	for _, s := range c {
		v, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			return v, nil
		}
	}
	return nil, nil
}

func (c Chain) Set(key string, value []byte) error {
	if len(c) == 0 {
		return nil
	}
	return c[0].Set(key, value)
}

func (c Chain) Delete(key string) error {
	for _, s := range c {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Default is the environment, then the keychain when one is available.
func Default() SecretStore {
	if k := NewKeychainStore(); k.Available() {
		return Chain{k, EnvStore{}}
	}
	return Chain{EnvStore{}}
}

// Lookup returns the secret named key as a string. An empty key resolves
// to the empty string.
func Lookup(s SecretStore, key string) (string, error) {
	if key == "" || s == nil {
		return "", nil
	}
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
