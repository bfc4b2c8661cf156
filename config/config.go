package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/nachoal/ollama-client-go/llm"
)

// Setting keys. Each one can also be set through its upper-case environment variable.
const (
	KeyServerIP          = "server_ip"
	KeyServerPort        = "server_port"
	KeyLocalHost         = "local_host"
	KeyLocalPort         = "local_port"
	KeyModel             = "model"
	KeyVisionModel       = "vision_model"
	KeyLocalModel        = "local_model"
	KeyLocalVisionModel  = "local_vision_model"
	KeyImagesDir         = "images_dir"
	KeyLivenessTimeout   = "liveness_timeout"
	KeyIdleTimeout       = "idle_timeout"
	KeyGenerationTimeout = "generation_timeout"
	KeyHistoryFile       = "history_file"
	KeyTheme             = "theme"
)

const (
	DefaultPort              = 11434
	DefaultLocalHost         = "localhost"
	DefaultModel             = "llama3.2"
	DefaultVisionModel       = "llava"
	DefaultImagesDir         = "./images"
	DefaultLivenessTimeout   = 5 * time.Second
	DefaultIdleTimeout       = 2 * time.Minute
	DefaultGenerationTimeout = 10 * time.Minute
	DefaultTheme             = "default"

	configName = "ollama-client"
	configDir  = ".ollama-client"
)

// EndpointConfig is the resolved, read-only application configuration
type EndpointConfig struct {
	RemoteHost string
	RemotePort int
	LocalHost  string
	LocalPort  int

	TextModel        string
	VisionModel      string
	LocalTextModel   string
	LocalVisionModel string

	ImagesDir         string
	LivenessTimeout   time.Duration
	IdleTimeout       time.Duration
	GenerationTimeout time.Duration
	HistoryPath       string
	Theme             string

	// ConfigFile is the config file that was read, empty when none was found
	ConfigFile string
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults, environment bindings and
// the config file search path set up.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyServerIP, "")
	v.SetDefault(KeyServerPort, DefaultPort)
	v.SetDefault(KeyLocalHost, DefaultLocalHost)
	v.SetDefault(KeyLocalPort, DefaultPort)
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyVisionModel, DefaultVisionModel)
	v.SetDefault(KeyLocalModel, "")
	v.SetDefault(KeyLocalVisionModel, "")
	v.SetDefault(KeyImagesDir, DefaultImagesDir)
	v.SetDefault(KeyLivenessTimeout, DefaultLivenessTimeout.String())
	v.SetDefault(KeyIdleTimeout, DefaultIdleTimeout.String())
	v.SetDefault(KeyGenerationTimeout, DefaultGenerationTimeout.String())
	v.SetDefault(KeyHistoryFile, defaultHistoryPath())
	v.SetDefault(KeyTheme, DefaultTheme)

	for _, key := range []string{
		KeyServerIP, KeyServerPort, KeyLocalHost, KeyLocalPort,
		KeyModel, KeyVisionModel, KeyLocalModel, KeyLocalVisionModel,
		KeyImagesDir, KeyLivenessTimeout, KeyIdleTimeout, KeyGenerationTimeout,
		KeyHistoryFile, KeyTheme,
	} {
		// .env files use the lower-case names; the upper-case form is also accepted
		_ = v.BindEnv(key, key, strings.ToUpper(key))
	}

	v.SetConfigName(configName)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, configDir))
	}

	return v
}

// Load reads the optional config file and builds an EndpointConfig from v
func Load(v *viper.Viper) (*EndpointConfig, error) {
	configFile := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &llm.ConfigurationError{Key: "config file", Reason: "failed to read", Err: err}
		}
	} else {
		configFile = v.ConfigFileUsed()
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = configFile
	return cfg, nil
}

// FromViper builds an EndpointConfig from already-loaded settings
func FromViper(v *viper.Viper) (*EndpointConfig, error) {
	cfg := &EndpointConfig{
		LocalHost:   strings.TrimSpace(v.GetString(KeyLocalHost)),
		TextModel:   strings.TrimSpace(v.GetString(KeyModel)),
		VisionModel: strings.TrimSpace(v.GetString(KeyVisionModel)),
		ImagesDir:   strings.TrimSpace(v.GetString(KeyImagesDir)),
		HistoryPath: expandHome(strings.TrimSpace(v.GetString(KeyHistoryFile))),
		Theme:       strings.ToLower(strings.TrimSpace(v.GetString(KeyTheme))),
	}

	var err error
	if cfg.RemotePort, err = port(v, KeyServerPort); err != nil {
		return nil, err
	}
	if cfg.LocalPort, err = port(v, KeyLocalPort); err != nil {
		return nil, err
	}

	// server_ip may carry its own port, which wins over server_port
	host, hostPort, err := splitHost(v.GetString(KeyServerIP))
	if err != nil {
		return nil, &llm.ConfigurationError{Key: KeyServerIP, Reason: "invalid address", Err: err}
	}
	cfg.RemoteHost = host
	if hostPort != 0 {
		cfg.RemotePort = hostPort
	}

	if cfg.LocalHost == "" {
		cfg.LocalHost = DefaultLocalHost
	}
	if cfg.TextModel == "" {
		return nil, &llm.ConfigurationError{Key: KeyModel, Reason: "must not be empty"}
	}
	if cfg.VisionModel == "" {
		return nil, &llm.ConfigurationError{Key: KeyVisionModel, Reason: "must not be empty"}
	}

	cfg.LocalTextModel = strings.TrimSpace(v.GetString(KeyLocalModel))
	if cfg.LocalTextModel == "" {
		cfg.LocalTextModel = cfg.TextModel
	}
	cfg.LocalVisionModel = strings.TrimSpace(v.GetString(KeyLocalVisionModel))
	if cfg.LocalVisionModel == "" {
		cfg.LocalVisionModel = cfg.VisionModel
	}

	if cfg.LivenessTimeout, err = duration(v, KeyLivenessTimeout); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = duration(v, KeyIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.GenerationTimeout, err = duration(v, KeyGenerationTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RemoteConfigured reports whether a remote host is set at all
func (c *EndpointConfig) RemoteConfigured() bool {
	return c.RemoteHost != ""
}

// RemoteIsLocal reports whether the remote address points at the local endpoint
func (c *EndpointConfig) RemoteIsLocal() bool {
	return c.RemoteConfigured() && c.RemotePort == c.LocalPort && sameHost(c.RemoteHost, c.LocalHost)
}

// RemoteEnabled reports whether a distinct remote endpoint is available
func (c *EndpointConfig) RemoteEnabled() bool {
	return c.RemoteConfigured() && !c.RemoteIsLocal()
}

// RemoteAddress returns host:port of the remote endpoint
func (c *EndpointConfig) RemoteAddress() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

// LocalAddress returns host:port of the local endpoint
func (c *EndpointConfig) LocalAddress() string {
	return net.JoinHostPort(c.LocalHost, strconv.Itoa(c.LocalPort))
}

// ModelFor picks the model name for an endpoint
func (c *EndpointConfig) ModelFor(remote, vision bool) string {
	switch {
	case remote && vision:
		return c.VisionModel
	case remote:
		return c.TextModel
	case vision:
		return c.LocalVisionModel
	default:
		return c.LocalTextModel
	}
}

func port(v *viper.Viper, key string) (int, error) {
	p, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return 0, &llm.ConfigurationError{Key: key, Reason: "not a number", Err: err}
	}
	if p < 1 || p > 65535 {
		return 0, &llm.ConfigurationError{Key: key, Reason: fmt.Sprintf("port %d out of range", p)}
	}
	return p, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, &llm.ConfigurationError{Key: key, Reason: "not a duration", Err: err}
	}
	if d <= 0 {
		return 0, &llm.ConfigurationError{Key: key, Reason: "must be positive"}
	}
	return d, nil
}

// splitHost accepts "host", "host:port", "[v6]:port" and an optional http(s):// prefix.
func splitHost(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "http://")
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimRight(raw, "/")
	if raw == "" {
		return "", 0, nil
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		// No port present; a bare IPv6 literal also ends up here
		return strings.Trim(raw, "[]"), 0, nil
	}
	if host == "" {
		return "", 0, fmt.Errorf("missing host in %q", raw)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p < 1 || p > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", raw)
	}
	return host, p, nil
}

func sameHost(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	return isLoopback(a) && isLoopback(b)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDir, "history.jsonl")
	}
	return filepath.Join(home, configDir, "history.jsonl")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
