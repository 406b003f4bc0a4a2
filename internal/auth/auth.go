// Package auth finds the Gemini API key for interactive use of the CLI.
// The Lambda reads it from SSM instead (see lambdaboot.LoadGeminiKey).
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	credentialDir  = ".tooltrace"
	credentialFile = "credentials.gpg"
)

// ErrNoAPIKey means no source produced a key.
var ErrNoAPIKey = errors.New("Gemini API key not found: set GEMINI_API_KEY or store it GPG-encrypted at ~/.tooltrace/credentials.gpg")

// GetAPIKey returns the Gemini API key.
// Priority order:
//  1. configured, usually GEMINI_API_KEY as parsed by config.Load
//  2. GPG-encrypted file at ~/.tooltrace/credentials.gpg
func GetAPIKey(configured string, logger zerolog.Logger) (string, error) {
	if configured != "" {
		logger.Debug().Msg("Using API key from environment variable")
		return configured, nil
	}

	key, err := getFromGPG(logger)
	if err == nil && key != "" {
		logger.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}
	if err != nil {
		logger.Debug().Err(err).Msg("No API key in GPG credentials")
	}
	return "", ErrNoAPIKey
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG(logger zerolog.Logger) (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	logger.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := passphraseFile(logger); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphraseFile looks for .gpg-passphrase in the current directory for
// non-interactive decryption. The file must be readable by the owner only.
func passphraseFile(logger zerolog.Logger) (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	path := filepath.Join(cwd, ".gpg-passphrase")
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0o077 != 0 {
		logger.Warn().
			Str("passphrase_file", path).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return path, true
}
