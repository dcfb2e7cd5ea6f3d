// Package config loads glide's YAML + CLI configuration surface (spec §6),
// merged defaults < YAML file < CLI flags, grounded on
// nikoskalogridis-streamerbrainz/cmd/streamerbrainz/config.go's nested
// YAML-tag struct layout and default-filling / override pattern.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig is the top-level YAML configuration for the glide daemon.
type AppConfig struct {
	Headless bool `yaml:"headless"`

	Hud         HudConfig         `yaml:"hud"`
	Scroll      ScrollConfig      `yaml:"scroll"`
	TouchProof  TouchProofConfig  `yaml:"touchproof"`
	Velocity    VelocityConfig    `yaml:"velocity"`
	OpticalFlow OpticalFlowConfig `yaml:"optical_flow"`

	HandLossGraceMs int64 `yaml:"hand_loss_grace_ms"`
}

type HudConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Port            uint16 `yaml:"port"`
	Token           string `yaml:"token,omitempty"`
	Hz              uint32 `yaml:"hz"`
	CameraHz        uint32 `yaml:"camera_hz"`
	CameraFrameSkip uint32 `yaml:"camera_frame_skip"`
}

type ScrollConfig struct {
	Enabled                 bool    `yaml:"enabled"`
	PixelsPerUnit           float64 `yaml:"pixels_per_unit"`
	MaxStepPx               float64 `yaml:"max_step_px"`
	RespectSystemPreference bool    `yaml:"respect_system_preference"`
}

type TouchProofConfig struct {
	ProximityEnter float64 `yaml:"proximity_enter"`
	ProximityExit  float64 `yaml:"proximity_exit"`
	AngleEnterDeg  float64 `yaml:"angle_enter_deg"`
	AngleExitDeg   float64 `yaml:"angle_exit_deg"`
	KD             float64 `yaml:"k_d"`
	KTheta         float64 `yaml:"k_theta"`
	GateLow        float64 `yaml:"gate_low"`
	GateHigh       float64 `yaml:"gate_high"`
	NEnter         int     `yaml:"n_enter"`
	NExit          int     `yaml:"n_exit"`
	TEnter         float64 `yaml:"t_enter"`
	TExit          float64 `yaml:"t_exit"`
	VisibilityAMin float64 `yaml:"visibility_a_min"`
}

type VelocityConfig struct {
	WindowMs    int64   `yaml:"window_ms"`
	EMABeta     float64 `yaml:"ema_beta"`
	NoiseThresh float64 `yaml:"noise_threshold"`
	MinSamples  int     `yaml:"min_samples"`
}

type OpticalFlowConfig struct {
	WindowFrames int `yaml:"window_frames"`
	PatchSize    int `yaml:"patch_size"`
}

// Default returns a fully-populated AppConfig with spec §4.3-§4.8 and §6
// defaults.
func Default() AppConfig {
	return AppConfig{
		Headless: false,
		Hud: HudConfig{
			Enabled:         true,
			Port:            8765,
			Hz:              60,
			CameraHz:        30,
			CameraFrameSkip: 3,
		},
		Scroll: ScrollConfig{
			Enabled:                 true,
			PixelsPerUnit:           800,
			MaxStepPx:               60,
			RespectSystemPreference: true,
		},
		TouchProof: TouchProofConfig{
			ProximityEnter: 0.30,
			ProximityExit:  0.50,
			AngleEnterDeg:  15,
			AngleExitDeg:   35,
			KD:             0.30,
			KTheta:         2.0,
			GateLow:        0.40,
			GateHigh:       0.70,
			NEnter:         4,
			NExit:          3,
			TEnter:         0.75,
			TExit:          0.58,
			VisibilityAMin: 0.12,
		},
		Velocity: VelocityConfig{
			WindowMs:    100,
			EMABeta:     0.3,
			NoiseThresh: 0.002,
			MinSamples:  3,
		},
		OpticalFlow: OpticalFlowConfig{
			WindowFrames: 5,
			PatchSize:    15,
		},
		HandLossGraceMs: 200,
	}
}

// LoadFile reads and parses a YAML config file over Default()'s values.
// Unknown fields are rejected (helps catch typos), matching streamerbrainz's
// config.go decoder settings.
func LoadFile(path string) (AppConfig, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// FlagSet declares glide's CLI flags on fs, returning pointers whose values
// are only meaningful after fs.Parse. ApplyOverrides walks the parsed flags
// with fs.Visit, so only flags actually given on the command line override
// the loaded config, even when set to their zero value; a flag left at its
// default changes nothing.
type FlagSet struct {
	fs *flag.FlagSet

	configPath *string
	headless   *bool
	hudEnabled *bool
	hudPort    *uint
	hudToken   *string
	hudHz      *uint
	cameraHz   *uint
	scrollOn   *bool
}

// NewFlagSet registers glide's flags on a fresh flag.FlagSet named name.
func NewFlagSet(name string) *FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &FlagSet{
		fs:         fs,
		configPath: fs.String("config", "", "path to a YAML config file"),
		headless:   fs.Bool("headless", false, "suppress any debug preview sink"),
		hudEnabled: fs.Bool("hud", true, "enable the HUD broadcaster"),
		hudPort:    fs.Uint("hud-port", 8765, "HUD websocket port"),
		hudToken:   fs.String("hud-token", "", "HUD session token"),
		hudHz:      fs.Uint("hud-hz", 60, "HUD scroll/touchproof message rate"),
		cameraHz:   fs.Uint("camera-hz", 30, "HUD camera preview rate"),
		scrollOn:   fs.Bool("scroll", true, "enable OS scroll dispatch"),
	}
}

// Parse parses args (typically os.Args[1:]).
func (f *FlagSet) Parse(args []string) error {
	return f.fs.Parse(args)
}

// ConfigPath returns the -config flag's value.
func (f *FlagSet) ConfigPath() string {
	return *f.configPath
}

// ApplyOverrides merges flags the user actually passed on the command line
// into cfg. Flags left at their default are not applied, so a YAML file's
// values still win when the user didn't ask to override them on the CLI —
// mirroring streamerbrainz's "only apply if set" FlagOverrides contract,
// implemented here via fs.Visit instead of per-field *T pointers.
func (f *FlagSet) ApplyOverrides(cfg *AppConfig) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "headless":
			cfg.Headless = *f.headless
		case "hud":
			cfg.Hud.Enabled = *f.hudEnabled
		case "hud-port":
			cfg.Hud.Port = uint16(*f.hudPort)
		case "hud-token":
			cfg.Hud.Token = *f.hudToken
		case "hud-hz":
			cfg.Hud.Hz = uint32(*f.hudHz)
		case "camera-hz":
			cfg.Hud.CameraHz = uint32(*f.cameraHz)
		case "scroll":
			cfg.Scroll.Enabled = *f.scrollOn
		}
	})
}

// Load merges defaults < YAML file < CLI flags, per spec §6, and validates
// the result.
func Load(args []string) (AppConfig, error) {
	fs := NewFlagSet("glide")
	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}

	cfg, err := LoadFile(fs.ConfigPath())
	if err != nil {
		return AppConfig{}, err
	}
	fs.ApplyOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks config invariants, matching streamerbrainz's
// post-merge Validate() convention.
func (c *AppConfig) Validate() error {
	if c.Hud.Enabled && c.Hud.Port == 0 {
		return errors.New("hud.port must not be 0 when hud.enabled is true")
	}
	if c.TouchProof.NEnter <= 0 {
		return errors.New("touchproof.n_enter must be > 0")
	}
	if c.TouchProof.NExit <= 0 {
		return errors.New("touchproof.n_exit must be > 0")
	}
	if c.Velocity.MinSamples <= 0 {
		return errors.New("velocity.min_samples must be > 0")
	}
	if c.HandLossGraceMs < 0 {
		return errors.New("hand_loss_grace_ms must be >= 0")
	}
	return nil
}
