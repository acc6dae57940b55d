package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const keychainService = "snippets"

// itemNotFound is the exit code of `security` for a missing item.
const itemNotFound = 44

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct {
	service string
	command string
}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{service: keychainService, command: "security"}
}

// Available reports whether the keychain tool can be used on this host.
func (k *KeychainStore) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath(k.command)
	return err == nil
}

func (k *KeychainStore) run(args ...string) ([]byte, error) {
	args = append(args, "-s", k.service)
	return exec.Command(k.command, args...).Output()
}

// Set stores a secret, replacing an existing one.
func (k *KeychainStore) Set(key string, value []byte) error {
	_, err := k.run("add-generic-password", "-U", "-a", key, "-w", string(value))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("keychain set %s: %s: %w", key, strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Get returns nil for a missing item.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.run("find-generic-password", "-a", key, "-w")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

func (k *KeychainStore) Delete(key string) error {
	_, err := k.run("delete-generic-password", "-a", key)
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFound) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
