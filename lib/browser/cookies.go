package browser

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// LoadCookies reads a persisted cookie profile. A missing file is not
// an error, it just means a fresh identity.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

// SaveCookies writes the cookie profile, creating parent directories
// as needed.
func SaveCookies(path string, cookies []Cookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
