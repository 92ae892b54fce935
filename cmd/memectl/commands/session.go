package commands

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/4xmen/memeboard/pkg/models"
)

type session struct {
	APIURL string       `json:"api_url,omitempty"`
	Token  string       `json:"token,omitempty"`
	User   *models.User `json:"user,omitempty"`
}

// loadSession reads path. A missing file is an empty session.
func loadSession(path string) (session, error) {
	var s session
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	return s, json.Unmarshal(b, &s)
}

// writeSession writes via a temp file then rename.
func writeSession(path string, s session) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
