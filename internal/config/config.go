package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidlab/internal/control"
	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/physics"
	"github.com/san-kum/pidlab/internal/sim"
)

const (
	DefaultDt       = sim.DefaultDt
	DefaultDuration = 10.0
	DefaultKp       = 2.0
	DefaultKi       = 0.1
	DefaultKd       = 0.5
)

type Config struct {
	Dt               float64        `yaml:"dt"`
	Duration         float64        `yaml:"duration"`
	StartPosition    float64        `yaml:"start_position"`
	Target           float64        `yaml:"target"`
	Gains            dynamo.Gains   `yaml:"gains"`
	Plant            physics.Config `yaml:"plant"`
	Limits           control.Limits `yaml:"limits"`
	Derivative       string         `yaml:"derivative"`
	DisturbanceForce float64        `yaml:"disturbance_force"`
	AutoStep         sim.AutoStep   `yaml:"auto_step"`
	History          int            `yaml:"history"`
	Preset           string         `yaml:"preset,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Dt:               DefaultDt,
		Duration:         DefaultDuration,
		StartPosition:    physics.DefaultStartPosition,
		Target:           physics.DefaultStartPosition,
		Gains:            dynamo.Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd},
		Plant:            physics.DefaultConfig(),
		Limits:           control.DefaultLimits(),
		Derivative:       control.DerivativeOnError.String(),
		DisturbanceForce: physics.DefaultDisturbanceForce,
		AutoStep:         sim.DefaultAutoStep(),
		History:          sim.DefaultHistory,
	}
}

// Load overlays the YAML file at path on the defaults and applies the named
// preset, if any.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Preset != "" {
		if err := cfg.ApplyPreset(cfg.Preset); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyPreset copies the preset's gains and friction into the config.
func (c *Config) ApplyPreset(name string) error {
	p, err := GetPreset(name)
	if err != nil {
		return err
	}
	c.Preset = p.Name
	c.Gains = p.Gains()
	c.Plant.Friction = p.Friction
	return nil
}

func (c *Config) Validate() error {
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return dynamo.Bounds("duration", c.Duration, "> 0")
	}
	for name, g := range map[string]float64{"kp": c.Gains.Kp, "ki": c.Gains.Ki, "kd": c.Gains.Kd} {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return dynamo.Bounds(name, g, "finite")
		}
	}
	sc, err := c.Sim()
	if err != nil {
		return err
	}
	return sc.Validate()
}

// Sim converts the file representation into a session configuration.
func (c *Config) Sim() (sim.Config, error) {
	mode, err := control.ParseDerivativeMode(c.Derivative)
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Dt:               c.Dt,
		StartPosition:    c.StartPosition,
		Target:           c.Target,
		Gains:            c.Gains,
		Limits:           c.Limits,
		Derivative:       mode,
		Plant:            c.Plant,
		DisturbanceForce: c.DisturbanceForce,
		AutoStep:         c.AutoStep,
		History:          c.History,
	}, nil
}

// Label names a run after its preset, or "custom".
func (c *Config) Label() string {
	if c.Preset != "" {
		return c.Preset
	}
	return "custom"
}
