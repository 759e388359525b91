package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/framewise/internal/model"
)

const lastSessionFile = "last-session"

// startSession returns the --session value or a new session ID, and
// remembers it for follow-up commands
func startSession(cfg model.Config) string {
	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}
	if err := rememberSession(cfg, id); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "Could not remember session: %v\n", err)
	}
	return id
}

// currentSession returns the --session value or the last session started
func currentSession(cfg model.Config) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}

	data, err := os.ReadFile(filepath.Join(cfg.Recovery.Dir, lastSessionFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("no session: pass --session or run 'framewise generate' first")
	}
	if err != nil {
		return "", fmt.Errorf("read last session: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", errors.New("no session: pass --session or run 'framewise generate' first")
	}
	return id, nil
}

func rememberSession(cfg model.Config, id string) error {
	if err := os.MkdirAll(cfg.Recovery.Dir, 0755); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}
	return os.WriteFile(filepath.Join(cfg.Recovery.Dir, lastSessionFile), []byte(id+"\n"), 0644)
}
