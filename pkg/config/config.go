package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	Environment               string        `koanf:"environment"`
	Hostname                  string        `koanf:"-"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"3690"`

	// LibraryRoots are the absolute directories that get walked on every scan.
	LibraryRoots []string `koanf:"library_roots"`
	// ConversionRoot is the only subtree in which .cbr files may be rewritten
	// into .cbz. Empty disables conversion entirely.
	ConversionRoot      string `koanf:"conversion_root"`
	ScanIntervalMinutes int    `koanf:"scan_interval_minutes" default:"60"`
	ScanOnStartup       bool   `koanf:"scan_on_startup" default:"true"`
	ScanMarkerFile      string `koanf:"scan_marker_file" default:".rescan"`
	// ScanRunRetention bounds how long finished scan run records are kept.
	ScanRunRetention time.Duration `koanf:"scan_run_retention" default:"720h"`

	ThumbnailDir     string `koanf:"thumbnail_dir" default:"/data/thumbnails"`
	ThumbnailHeight  int    `koanf:"thumbnail_height" default:"400"`
	ThumbnailQuality int    `koanf:"thumbnail_quality" default:"85"`
	LogoDir          string `koanf:"logo_dir" default:"/data/logos"`

	ConvertExtractor string        `koanf:"convert_extractor" default:"command"`
	ConvertCommand   string        `koanf:"convert_command" default:"unrar"`
	ConvertArgs      []string      `koanf:"convert_args" default:"[\"x\",\"-o+\",\"-y\",\"{archive}\",\"{dest}/\"]"`
	ConvertTimeout   time.Duration `koanf:"convert_timeout" default:"5m"`
	TempDir          string        `koanf:"temp_dir"`

	WatchRoots    bool          `koanf:"watch_roots"`
	WatchDebounce time.Duration `koanf:"watch_debounce" default:"5s"`
}

const (
	environmentENV    = "ENVIRONMENT"
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/longbox.yaml"
)

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.Hostname = hostname

	if os.Getenv(environmentENV) == "development" {
		loadDevelopmentConfig(cfg)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err = k.Load(env.ProviderWithValue("", ".", func(s, v string) (string, interface{}) {
		key := strings.ToLower(s)
		kind, ok := known[key]
		if !ok {
			return "", nil
		}
		if kind == reflect.Slice {
			return key, splitList(v)
		}
		return key, v
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	cfg.normalize()

	return cfg, nil
}

// NewForTest returns a config backed by an in-memory database with no
// library roots and the periodic scan disabled.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.ScanOnStartup = false
	cfg.ThumbnailDir = filepath.Join(os.TempDir(), "longbox-test-thumbnails")
	cfg.LogoDir = filepath.Join(os.TempDir(), "longbox-test-logos")
	return cfg
}

// normalize cleans the configured paths so prefix comparisons against
// scanned files are reliable.
func (cfg *Config) normalize() {
	roots := make([]string, 0, len(cfg.LibraryRoots))
	for _, root := range cfg.LibraryRoots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		roots = append(roots, filepath.Clean(root))
	}
	cfg.LibraryRoots = roots

	if cfg.ConversionRoot != "" {
		cfg.ConversionRoot = filepath.Clean(cfg.ConversionRoot)
	}
}

// knownKeys maps every koanf key to the kind of its field.
func knownKeys() map[string]reflect.Kind {
	keys := map[string]reflect.Kind{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		keys[tag] = t.Field(i).Type.Kind()
	}
	return keys
}

// splitList turns a comma-separated env value into its trimmed, non-empty
// items.
func splitList(v string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func checkRequired(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	missing := make([]string, 0)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if v.Field(i).IsZero() {
			key := toSnakeCase(field.Name)
			missing = append(missing, strings.ToUpper(key)+" ("+key+")")
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
