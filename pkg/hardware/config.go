package hardware

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strikelab/go-armctl/internal/config"
	"github.com/strikelab/go-armctl/pkg/chain"
)

// Config is the hardware description file: the board's port and rate plus
// one controller entry per actuated joint. Joint names must exist in the
// chain; limits are taken from the chain, never restated here.
type Config struct {
	Port   string  `yaml:"port"`
	Baud   int     `yaml:"baud"`
	RateHz float64 `yaml:"rate_hz"`

	Servos    []ServoConfig    `yaml:"servos"`
	Solenoids []SolenoidConfig `yaml:"solenoids"`
	Encoders  []EncoderConfig  `yaml:"encoders"`
}

type ServoConfig struct {
	Joint      string `yaml:"joint"`
	Channel    int    `yaml:"channel"`
	MinPulseUS int    `yaml:"min_pulse_us"`
	MaxPulseUS int    `yaml:"max_pulse_us"`
}

type SolenoidConfig struct {
	Joint   string `yaml:"joint"`
	Channel int    `yaml:"channel"`
	DwellMS int    `yaml:"dwell_ms"`
}

type EncoderConfig struct {
	Joint   string  `yaml:"joint"`
	Channel int     `yaml:"channel"`
	Scale   float64 `yaml:"scale"`
	Offset  float64 `yaml:"offset"`
}

// LoadConfig reads and parses a hardware config file, filling defaults for
// baud and rate.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hardware: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML hardware config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("hardware: parse config: %w", err)
	}
	if cfg.Baud == 0 {
		cfg.Baud = config.DefaultBoardBaud
	}
	if cfg.RateHz == 0 {
		cfg.RateHz = config.DefaultLoopHz
	}
	return cfg, nil
}

// Build resolves the config against the chain into controllers and encoders.
// Unknown joints and doubly-actuated joints are configuration errors.
func (cfg Config) Build(c *chain.Chain) ([]Controller, []*Encoder, error) {
	actuated := make(map[string]bool, len(cfg.Servos)+len(cfg.Solenoids))
	claim := func(joint string) error {
		if _, ok := c.Index(joint); !ok {
			return fmt.Errorf("hardware: config names unknown joint %q", joint)
		}
		if actuated[joint] {
			return fmt.Errorf("hardware: joint %q has more than one controller", joint)
		}
		actuated[joint] = true
		return nil
	}

	controllers := make([]Controller, 0, len(cfg.Servos)+len(cfg.Solenoids))
	for _, sc := range cfg.Servos {
		if err := claim(sc.Joint); err != nil {
			return nil, nil, err
		}
		idx, _ := c.Index(sc.Joint)
		servo, err := NewServo(sc.Joint, sc.Channel, c.Joint(idx).Limits, sc.MinPulseUS, sc.MaxPulseUS)
		if err != nil {
			return nil, nil, err
		}
		controllers = append(controllers, servo)
	}
	for _, sc := range cfg.Solenoids {
		if err := claim(sc.Joint); err != nil {
			return nil, nil, err
		}
		idx, _ := c.Index(sc.Joint)
		dwell := float64(sc.DwellMS) / 1000
		controllers = append(controllers, NewSolenoid(sc.Joint, sc.Channel, c.Joint(idx).Limits, dwell))
	}

	encoders := make([]*Encoder, 0, len(cfg.Encoders))
	for _, ec := range cfg.Encoders {
		if _, ok := c.Index(ec.Joint); !ok {
			return nil, nil, fmt.Errorf("hardware: encoder names unknown joint %q", ec.Joint)
		}
		encoders = append(encoders, NewEncoder(ec.Joint, ec.Channel, ec.Scale, ec.Offset))
	}

	return controllers, encoders, nil
}
