package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: when
// envName+"_FILE" names a file its trimmed contents win, otherwise the value
// of envName is returned. Neither set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := os.Getenv(fileEnv)
	if path == "" {
		return os.Getenv(envName), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		// Never echo the secret, only where it was expected.
		return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
