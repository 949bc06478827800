package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"blockedit.ai/internal/blocks"
)

type Config struct {
	SourcePath string       `yaml:"source_path"`
	Atlas      AtlasConfig  `yaml:"atlas"`
	Backup     BackupConfig `yaml:"backup"`
	IndexDB    string       `yaml:"index_db"`
	JournalDir string       `yaml:"journal_dir"`
	Listen     string       `yaml:"listen"`

	SoundPresets map[string]SoundPreset `yaml:"sound_presets,omitempty"`
}

type AtlasConfig struct {
	Path string `yaml:"path"`
	Size int    `yaml:"size"`
	Grid int    `yaml:"grid"`
}

type BackupConfig struct {
	Dir    string       `yaml:"dir"`
	Keep   int          `yaml:"keep"`
	Codec  string       `yaml:"codec"`
	Remote RemoteConfig `yaml:"remote"`
}

// RemoteConfig mirrors new backups to an S3-compatible bucket. Credentials
// come from the environment, never from the file.
type RemoteConfig struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Workers  int    `yaml:"workers"`
}

func (r RemoteConfig) Enabled() bool { return strings.TrimSpace(r.Endpoint) != "" }

type SoundPreset struct {
	Step  string `yaml:"step"`
	Break string `yaml:"break"`
	Place string `yaml:"place"`
}

// Load reads a YAML config. Relative paths in it are resolved against the
// directory holding the file. An empty path yields the defaults resolved
// against the working directory.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize(".")
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Defaults mirrors the layout of the game repo: js/constants.js and
// assets/atlas.png, with tool state under .blockedit/.
func Defaults() Config {
	return Config{
		SourcePath: filepath.Join("js", "constants.js"),
		Atlas: AtlasConfig{
			Path: filepath.Join("assets", "atlas.png"),
			Size: 1024,
			Grid: 16,
		},
		Backup: BackupConfig{
			Dir:   filepath.Join(".blockedit", "backups"),
			Keep:  20,
			Codec: "zstd",
		},
		IndexDB:    filepath.Join(".blockedit", "index.db"),
		JournalDir: filepath.Join(".blockedit", "journal"),
		Listen:     "127.0.0.1:8095",
	}
}

// Normalize fills zero values and makes paths absolute against baseDir.
func (c *Config) Normalize(baseDir string) {
	d := Defaults()
	if strings.TrimSpace(c.SourcePath) == "" {
		c.SourcePath = d.SourcePath
	}
	if strings.TrimSpace(c.Atlas.Path) == "" {
		c.Atlas.Path = d.Atlas.Path
	}
	if c.Atlas.Size == 0 {
		c.Atlas.Size = d.Atlas.Size
	}
	if c.Atlas.Grid == 0 {
		c.Atlas.Grid = d.Atlas.Grid
	}
	if strings.TrimSpace(c.Backup.Dir) == "" {
		c.Backup.Dir = d.Backup.Dir
	}
	if strings.TrimSpace(c.IndexDB) == "" {
		c.IndexDB = d.IndexDB
	}
	if strings.TrimSpace(c.JournalDir) == "" {
		c.JournalDir = d.JournalDir
	}
	if c.Backup.Codec == "" {
		c.Backup.Codec = d.Backup.Codec
	}
	c.Backup.Codec = strings.ToLower(c.Backup.Codec)
	if c.Listen == "" {
		c.Listen = d.Listen
	}

	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.SourcePath = resolve(c.SourcePath)
	c.Atlas.Path = resolve(c.Atlas.Path)
	c.Backup.Dir = resolve(c.Backup.Dir)
	c.IndexDB = resolve(c.IndexDB)
	c.JournalDir = resolve(c.JournalDir)

	normalized := make(map[string]SoundPreset, len(c.SoundPresets))
	for name, p := range c.SoundPresets {
		normalized[strings.ToUpper(strings.TrimSpace(name))] = p
	}
	c.SoundPresets = normalized
}

func (c Config) Validate() error {
	if c.Atlas.Size <= 0 || c.Atlas.Grid <= 0 {
		return fmt.Errorf("atlas size and grid must be positive")
	}
	if c.Atlas.Size%c.Atlas.Grid != 0 {
		return fmt.Errorf("atlas size %d is not a multiple of grid %d", c.Atlas.Size, c.Atlas.Grid)
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup keep must be >= 0")
	}
	switch c.Backup.Codec {
	case "zstd", "lz4":
	default:
		return fmt.Errorf("unknown backup codec %q (want zstd or lz4)", c.Backup.Codec)
	}
	if c.Backup.Remote.Enabled() && strings.TrimSpace(c.Backup.Remote.Bucket) == "" {
		return fmt.Errorf("backup remote needs a bucket")
	}
	if c.Backup.Remote.Workers < 0 {
		return fmt.Errorf("backup remote workers must be >= 0")
	}
	for name := range c.SoundPresets {
		if name == "" {
			return fmt.Errorf("sound preset with empty name")
		}
	}
	return nil
}

// Presets is the built-in sound preset table extended by the config.
func (c Config) Presets() blocks.Presets {
	extra := make(map[string]blocks.Sound, len(c.SoundPresets))
	for name, p := range c.SoundPresets {
		extra[name] = blocks.Sound{Step: p.Step, Break: p.Break, Place: p.Place}
	}
	return blocks.DefaultPresets().With(extra)
}

// TileSize is the edge length of one atlas cell in pixels.
func (c Config) TileSize() int { return c.Atlas.Size / c.Atlas.Grid }
