// Package remediation provides the static checklist returned with every
// search response.
package remediation

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultActions = []string{
	"Confirm scope: impacted systems/users and timeline.",
	"Collect logs: auth logs, flow logs, WAF, application errors.",
	"Correlate spikes: 5xx/auth failures/egress anomalies by timestamp.",
	"Containment if needed: rate limit, block indicators, rotate credentials.",
	"Create incident ticket with evidence + matched prior incidents.",
}

// Checklist is a fixed list of generic next steps. It never depends on the
// matches it is returned with.
type Checklist struct {
	actions []string
}

// checklistFile is the YAML root structure.
type checklistFile struct {
	Actions []string `yaml:"actions"`
}

// Default returns the built-in checklist.
func Default() *Checklist {
	return &Checklist{actions: append([]string(nil), defaultActions...)}
}

// Load reads a checklist from path. An empty path, a missing file or a file
// without actions yields the built-in checklist.
func Load(path string, logger *slog.Logger) (*Checklist, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("remediation checklist not found, using defaults", slog.String("path", path))
			return Default(), nil
		}
		return nil, err
	}
	var file checklistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	actions := make([]string, 0, len(file.Actions))
	for _, action := range file.Actions {
		if action = strings.TrimSpace(action); action != "" {
			actions = append(actions, action)
		}
	}
	if len(actions) == 0 {
		return Default(), nil
	}
	logger.Info("loaded remediation checklist", slog.String("path", path), slog.Int("actions", len(actions)))
	return &Checklist{actions: actions}, nil
}

// Actions returns a copy of the checklist.
func (c *Checklist) Actions() []string {
	if c == nil {
		return append([]string(nil), defaultActions...)
	}
	return append([]string(nil), c.actions...)
}
