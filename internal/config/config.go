package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SinkConsole   = "console"
	SinkLocalDisc = "localdisc"
)

type Config struct {
	NodeID     string           `yaml:"node_id"`
	ListenAddr string           `yaml:"listen_addr"`
	DataDir    string           `yaml:"data_dir"`
	Log        LogConfig        `yaml:"log"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Sink    string `yaml:"sink"`
	NoColor bool   `yaml:"no_color"`
}

type FilesystemConfig struct {
	MaxInodes              int    `yaml:"max_inodes"`
	MaxFilenameSize        int    `yaml:"max_filename_size"`
	ContentCapacity        int    `yaml:"content_capacity"`
	DefaultContent         string `yaml:"default_content"`
	JournalCapacity        int    `yaml:"journal_capacity"`
	LegacyJournalNumbering bool   `yaml:"legacy_txn_numbering"`
	MaxNegativeEntries     int    `yaml:"max_negative_entries"`
	// RootMode is an octal permission string such as "0777".
	RootMode        string `yaml:"root_mode"`
	SuperuserBypass bool   `yaml:"superuser_bypass"`
}

func Default() *Config {
	return &Config{
		NodeID:     "vtfs-1",
		ListenAddr: "localhost:9000",
		DataDir:    "./run/vtfs",
		Log: LogConfig{
			Level: "info",
			Sink:  SinkConsole,
		},
		Filesystem: FilesystemConfig{
			MaxInodes:          0,
			MaxFilenameSize:    255,
			ContentCapacity:    8192,
			DefaultContent:     "Hello from vtfs!\n",
			JournalCapacity:    100,
			MaxNegativeEntries: 4096,
			RootMode:           "0777",
		},
	}
}

// LoadConfig reads a YAML config file. When the file does not exist the
// defaults are written there and returned.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Environ merges a dotenv file with the process environment. Process values
// win. A missing dotenv file is not an error.
func Environ(dotenvPath string) (map[string]string, error) {
	env := map[string]string{}
	if dotenvPath != "" {
		data, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			env = data
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("(config-godotenv) %w", err)
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "VTFS_") {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv overlays VTFS_* variables onto cfg.
func (c *Config) ApplyEnv(env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := env[key]
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) {
		if v, ok := env[key]; ok && v != "" {
			v = strings.ToLower(v)
			*dst = v == "true" || v == "1" || v == "yes"
		}
	}

	str("VTFS_NODE_ID", &c.NodeID)
	str("VTFS_LISTEN", &c.ListenAddr)
	str("VTFS_DATA_DIR", &c.DataDir)
	str("VTFS_LOG_LEVEL", &c.Log.Level)
	str("VTFS_LOG_SINK", &c.Log.Sink)
	flag("VTFS_NO_COLOR", &c.Log.NoColor)

	fsc := &c.Filesystem
	for key, dst := range map[string]*int{
		"VTFS_MAX_INODES":       &fsc.MaxInodes,
		"VTFS_MAX_FILENAME":     &fsc.MaxFilenameSize,
		"VTFS_CONTENT_CAPACITY": &fsc.ContentCapacity,
		"VTFS_JOURNAL_CAPACITY": &fsc.JournalCapacity,
		"VTFS_MAX_NEGATIVE":     &fsc.MaxNegativeEntries,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	str("VTFS_DEFAULT_CONTENT", &fsc.DefaultContent)
	str("VTFS_ROOT_MODE", &fsc.RootMode)
	flag("VTFS_LEGACY_TXN", &fsc.LegacyJournalNumbering)
	flag("VTFS_SUPERUSER_BYPASS", &fsc.SuperuserBypass)
	return nil
}

func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("node_id must not be empty")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	switch c.Log.Sink {
	case SinkConsole, SinkLocalDisc:
	default:
		return fmt.Errorf("unknown log sink %q", c.Log.Sink)
	}

	fsc := c.Filesystem
	if fsc.MaxInodes < 0 || fsc.ContentCapacity < 0 || fsc.JournalCapacity < 0 || fsc.MaxFilenameSize < 0 || fsc.MaxNegativeEntries < 0 {
		return errors.New("filesystem limits must not be negative")
	}
	if _, err := fsc.RootModeBits(); err != nil {
		return err
	}
	return nil
}

func (f FilesystemConfig) RootModeBits() (uint32, error) {
	if f.RootMode == "" {
		return 0o777, nil
	}
	mode, err := strconv.ParseUint(strings.TrimPrefix(f.RootMode, "0o"), 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("invalid root_mode %q", f.RootMode)
	}
	return uint32(mode), nil
}

// Load resolves the full configuration: YAML file, then dotenv, then process
// environment.
func Load(path string, dotenvPath string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	env, err := Environ(dotenvPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
