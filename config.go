package thicket

import (
	"fmt"
	"log/slog"

	"github.com/pelletier/go-toml/v2"
)

// Config configures a Renderer.
type Config struct {
	// Debug logs per-frame statistics at debug level.
	Debug bool `toml:"debug"`

	// KeepProgramsWarm keeps programs cached after their last display node
	// is released, so a later recompile with the same state reuses them.
	KeepProgramsWarm bool `toml:"keep_programs_warm"`

	// TransparentBlend is the blend mode of the transparent pass.
	TransparentBlend BlendMode `toml:"transparent_blend"`

	// MaxTextureLayers caps the layers considered per texture state. Layers
	// past the cap are skipped with a warning. Zero means no cap.
	MaxTextureLayers int `toml:"max_texture_layers"`

	// Logger receives warnings and debug statistics. Defaults to slog.Default().
	Logger *slog.Logger `toml:"-"`

	// Composer builds program sources. Defaults to KageComposer.
	Composer ShaderComposer `toml:"-"`
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		TransparentBlend: BlendNormal,
		MaxTextureLayers: maxKageImages,
	}
}

// LoadConfig parses a TOML configuration. Fields absent from the document
// keep their DefaultConfig values.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxTextureLayers < 0 {
		return Config{}, fmt.Errorf("parse config: max_texture_layers = %d, want >= 0", cfg.MaxTextureLayers)
	}
	return cfg, nil
}

// UnmarshalText lets BlendMode be read from config names.
func (b *BlendMode) UnmarshalText(text []byte) error {
	m, ok := ParseBlendMode(string(text))
	if !ok {
		return fmt.Errorf("unknown blend mode %q", text)
	}
	*b = m
	return nil
}

// MarshalText writes BlendMode as its config name.
func (b BlendMode) MarshalText() ([]byte, error) {
	switch b {
	case BlendNormal:
		return []byte("normal"), nil
	case BlendAdd:
		return []byte("add"), nil
	case BlendMultiply:
		return []byte("multiply"), nil
	case BlendScreen:
		return []byte("screen"), nil
	case BlendNone:
		return []byte("none"), nil
	}
	return nil, fmt.Errorf("unknown blend mode %d", b)
}
