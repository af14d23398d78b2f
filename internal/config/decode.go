package config

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/codex-agent/agentcore/internal/models"
)

// DecodeSessionConfiguration re-serializes a Stack's effective config (a
// bare map[string]any produced by merging every enabled layer) through TOML
// and decodes it onto a models.SessionConfiguration seeded with defaults, so
// a freshly started worker or session only has to set the layers it cares
// about and gets the rest from DefaultSessionConfiguration.
//
// Maps to: codex-rs/config/src/state.rs's effective-config materialization,
// adapted to decode into the session-wide struct internal/workflow already
// consumes rather than codex-rs's own Config type.
func (s *Stack) DecodeSessionConfiguration() (models.SessionConfiguration, error) {
	cfg := models.DefaultSessionConfiguration()

	effective := s.EffectiveConfig()
	if len(effective) == 0 {
		return cfg, nil
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(effective); err != nil {
		return cfg, err
	}
	if _, err := toml.Decode(buf.String(), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
