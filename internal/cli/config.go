package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultTimeout = 30 * time.Second

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Token     string
	TokenFile string
	Output    string
	Timeout   time.Duration
}

// DefaultConfig resolves each setting from the environment, then the dotenv
// profile, then a built-in default. The returned Config is always usable, even
// alongside an error about the profile.
func DefaultConfig() (*Config, error) {
	profile, err := readProfile(getEnvOrDefault("ALLFENCE_PROFILE", filepath.Join(configDir(), "config")))

	lookup := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v := profile[key]; v != "" {
			return v
		}
		return def
	}

	c := &Config{
		ServerURL: lookup("ALLFENCE_SERVER", "http://localhost:8080"),
		Token:     lookup("ALLFENCE_TOKEN", ""),
		TokenFile: lookup("ALLFENCE_TOKEN_FILE", filepath.Join(configDir(), "token")),
		Output:    lookup("ALLFENCE_OUTPUT", "text"),
		Timeout:   defaultTimeout,
	}

	if raw := lookup("ALLFENCE_TIMEOUT", ""); raw != "" {
		d, perr := time.ParseDuration(raw)
		if perr != nil {
			err = errors.Join(err, fmt.Errorf("invalid ALLFENCE_TIMEOUT %q: %w", raw, perr))
		} else {
			c.Timeout = d
		}
	}

	return c, err
}

// readProfile loads KEY=VALUE pairs from path; a missing file is an empty profile
func readProfile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return map[string]string{}, fmt.Errorf("reading profile %s: %w", path, err)
	}
	return values, nil
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // logged out
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token

	if err := os.MkdirAll(filepath.Dir(c.TokenFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.TokenFile, []byte(token+"\n"), 0o600)
}

// ClearToken forgets the saved token. Tokens are stateless JWTs, so this only
// affects the local machine; the token stays valid until it expires.
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".allfence"
	}
	return filepath.Join(home, ".allfence")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
