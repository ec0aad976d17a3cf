// Package config загружает настройки клиента и релея.
//
// Порядок приоритета: значения по умолчанию, YAML-файл, .env и переменные
// окружения, затем флаги командной строки (их применяют сами cmd).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Переменные окружения
const (
	EnvRelayAddr = "GHOSTTAG_RELAY_ADDR"
	EnvName      = "GHOSTTAG_NAME"
	EnvDebug     = "GHOSTTAG_DEBUG"
	EnvStrict    = "GHOSTTAG_STRICT"
)

var ErrInvalid = errors.New("invalid config")

// Config is the complete application configuration.
type Config struct {
	Relay     RelayConfig  `yaml:"relay"`
	Player    PlayerConfig `yaml:"player"`
	Arena     ArenaConfig  `yaml:"arena"`
	Tuning    Tuning       `yaml:"tuning"`
	FrameRate int          `yaml:"frame_rate"`
	// Strict turns invariant violations into panics.
	Strict bool `yaml:"strict"`
	Debug  bool `yaml:"debug"`
}

type RelayConfig struct {
	// Addr is where clients dial and where the relay listens.
	Addr      string `yaml:"addr"`
	AdminAddr string `yaml:"admin_addr"`
	// RoomCapacity limits members per room.
	RoomCapacity int `yaml:"room_capacity"`
	// SendQueue is the per-client outbound frame buffer on the relay.
	SendQueue int `yaml:"send_queue"`
}

type PlayerConfig struct {
	Name string `yaml:"name"`
	// Color is packed 0xRRGGBB; zero picks one from the player id.
	Color uint32 `yaml:"color"`
}

// Block is a square obstacle given by its centre.
type Block struct {
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Size float64 `yaml:"size"`
}

type ArenaConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	// WallThickness of the four border walls, centred on the edges.
	WallThickness float64 `yaml:"wall_thickness"`
	Blocks        []Block `yaml:"blocks"`
	// SpawnX/SpawnY default to the arena centre when both are zero.
	SpawnX float64 `yaml:"spawn_x"`
	SpawnY float64 `yaml:"spawn_y"`
}

type Tuning struct {
	BaseSpeed         float64       `yaml:"base_speed"`
	TransparentFactor float64       `yaml:"transparent_factor"`
	TaggerFactor      float64       `yaml:"tagger_factor"`
	PlayerRadius      float64       `yaml:"player_radius"`
	TagCooldown       time.Duration `yaml:"tag_cooldown"`
	SampleInterval    time.Duration `yaml:"sample_interval"`
	SearchRadius      float64       `yaml:"search_radius"`
	InterpTime        time.Duration `yaml:"interp_time"`
	FacingThreshold   float64       `yaml:"facing_threshold"`
	FadeDuration      time.Duration `yaml:"fade_duration"`
	WatchDelay        time.Duration `yaml:"watch_delay"`
	MoveSendInterval  time.Duration `yaml:"move_send_interval"`
	// MaxFrameDelta clamps a frame delta once, before any stage of the
	// frame sees it; zero (the default) disables the clamp.
	MaxFrameDelta time.Duration `yaml:"max_frame_delta"`
}

// Default returns the stock arena and tuning.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			Addr:         "localhost:50051",
			AdminAddr:    ":8080",
			RoomCapacity: 8,
			SendQueue:    1024,
		},
		Player: PlayerConfig{Name: "player"},
		Arena: ArenaConfig{
			Width:         800,
			Height:        600,
			WallThickness: 100,
			Blocks: []Block{
				{X: 300, Y: 300, Size: 100},
				{X: 500, Y: 300, Size: 100},
				{X: 400, Y: 400, Size: 100},
			},
		},
		Tuning: Tuning{
			BaseSpeed:         200,
			TransparentFactor: 0.6,
			TaggerFactor:      1.1,
			PlayerRadius:      15,
			TagCooldown:       3 * time.Second,
			SampleInterval:    10 * time.Second,
			SearchRadius:      80,
			InterpTime:        50 * time.Millisecond,
			FacingThreshold:   10,
			FadeDuration:      250 * time.Millisecond,
			WatchDelay:        time.Second,
			MoveSendInterval:  50 * time.Millisecond,
		},
		FrameRate: 60,
	}
}

// Load reads an optional YAML file over the defaults and then applies .env
// and environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	// .env не обязателен
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv applies GHOSTTAG_* overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvRelayAddr); v != "" {
		c.Relay.Addr = v
	}
	if v := getenv(EnvName); v != "" {
		c.Player.Name = v
	}
	for key, dst := range map[string]*bool{EnvDebug: &c.Debug, EnvStrict: &c.Strict} {
		v := getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
		}
		*dst = b
	}
	return nil
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	t := c.Tuning
	positive := map[string]float64{
		"arena.width":               c.Arena.Width,
		"arena.height":              c.Arena.Height,
		"tuning.base_speed":         t.BaseSpeed,
		"tuning.transparent_factor": t.TransparentFactor,
		"tuning.tagger_factor":      t.TaggerFactor,
		"tuning.player_radius":      t.PlayerRadius,
		"tuning.search_radius":      t.SearchRadius,
		"tuning.tag_cooldown":       t.TagCooldown.Seconds(),
		"tuning.sample_interval":    t.SampleInterval.Seconds(),
		"tuning.interp_time":        t.InterpTime.Seconds(),
		"tuning.fade_duration":      t.FadeDuration.Seconds(),
		"tuning.watch_delay":        t.WatchDelay.Seconds(),
		"frame_rate":                float64(c.FrameRate),
		"relay.room_capacity":       float64(c.Relay.RoomCapacity),
		"relay.send_queue":          float64(c.Relay.SendQueue),
	}
	for name, v := range positive {
		if !(v > 0) {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}
	if t.MoveSendInterval < 0 || t.MaxFrameDelta < 0 || t.FacingThreshold < 0 || c.Arena.WallThickness < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalid)
	}
	for i, b := range c.Arena.Blocks {
		if !(b.Size > 0) {
			return fmt.Errorf("%w: arena.blocks[%d].size must be positive", ErrInvalid, i)
		}
	}
	return nil
}

// Spawn returns the spawn point, defaulting to the arena centre.
func (a ArenaConfig) Spawn() (x, y float64) {
	if a.SpawnX == 0 && a.SpawnY == 0 {
		return a.Width / 2, a.Height / 2
	}
	return a.SpawnX, a.SpawnY
}

// FrameDelta is the frame period for FrameRate.
func (c Config) FrameDelta() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
