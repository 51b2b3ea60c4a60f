package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file.
const ConfigFileEnv = "CARSHARE_CONFIG"

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Grid     GridConfig
	Matching MatchingConfig
	Routing  RoutingConfig
	Geometry GeometryConfig
	Kafka    KafkaConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the key/value connection string used by lib/pq.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection URL used by the migration driver.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// GridConfig is the deployment region and the default grid resolution.
type GridConfig struct {
	LatTop    float64
	LatBottom float64
	LongLeft  float64
	LongRight float64
	NumTilesX int
	NumTilesY int
}

// BoundingBox returns the configured region.
func (g GridConfig) BoundingBox() domain.BoundingBox {
	return domain.BoundingBox{
		LatTop:    g.LatTop,
		LatBottom: g.LatBottom,
		LongLeft:  g.LongLeft,
		LongRight: g.LongRight,
	}
}

// MatchingConfig tunes the candidate scan.
type MatchingConfig struct {
	ScheduleWindow        time.Duration
	ProximityRadiusMeters float64
	Concurrency           int
	Timeout               time.Duration
	ValueLimit            int
}

// RoutingConfig selects and configures the route provider.
type RoutingConfig struct {
	Provider     string
	OSRMURL      string
	GoogleAPIKey string
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// GeometryConfig selects the geometry engine.
type GeometryConfig struct {
	Engine string
}

// KafkaConfig holds the event publisher settings. No brokers means events are logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func setDefaults(v *viper.Viper) {
	box := domain.DefaultBoundingBox

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "carshare")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 50)
	v.SetDefault("db.max_idle_conns", 25)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("db.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("new_relic.app_name", "carshare-server")
	v.SetDefault("new_relic.license_key", "")
	v.SetDefault("new_relic.enabled", false)

	v.SetDefault("log.level", "info")

	v.SetDefault("grid.lat_top", box.LatTop)
	v.SetDefault("grid.lat_bottom", box.LatBottom)
	v.SetDefault("grid.long_left", box.LongLeft)
	v.SetDefault("grid.long_right", box.LongRight)
	v.SetDefault("grid.num_tiles_x", 20)
	v.SetDefault("grid.num_tiles_y", 20)

	v.SetDefault("matching.schedule_window", time.Hour)
	v.SetDefault("matching.proximity_radius_meters", 2000.0)
	v.SetDefault("matching.concurrency", 8)
	v.SetDefault("matching.timeout", 15*time.Second)
	v.SetDefault("matching.value_limit", 10)

	v.SetDefault("routing.provider", "osrm")
	v.SetDefault("routing.osrm_url", "https://router.project-osrm.org")
	v.SetDefault("routing.google_api_key", "")
	v.SetDefault("routing.timeout", 10*time.Second)
	v.SetDefault("routing.cache_ttl", 24*time.Hour)

	v.SetDefault("geometry.engine", "postgis")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "carshare.handshakes")
}

// Load builds the configuration from defaults, an optional YAML file named by
// CARSHARE_CONFIG, and environment variables (server.port -> SERVER_PORT).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("db.host"),
			Port:            v.GetString("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			Name:            v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("db.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("new_relic.app_name"),
			LicenseKey: v.GetString("new_relic.license_key"),
			Enabled:    v.GetBool("new_relic.enabled"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Grid: GridConfig{
			LatTop:    v.GetFloat64("grid.lat_top"),
			LatBottom: v.GetFloat64("grid.lat_bottom"),
			LongLeft:  v.GetFloat64("grid.long_left"),
			LongRight: v.GetFloat64("grid.long_right"),
			NumTilesX: v.GetInt("grid.num_tiles_x"),
			NumTilesY: v.GetInt("grid.num_tiles_y"),
		},
		Matching: MatchingConfig{
			ScheduleWindow:        v.GetDuration("matching.schedule_window"),
			ProximityRadiusMeters: v.GetFloat64("matching.proximity_radius_meters"),
			Concurrency:           v.GetInt("matching.concurrency"),
			Timeout:               v.GetDuration("matching.timeout"),
			ValueLimit:            v.GetInt("matching.value_limit"),
		},
		Routing: RoutingConfig{
			Provider:     strings.ToLower(v.GetString("routing.provider")),
			OSRMURL:      v.GetString("routing.osrm_url"),
			GoogleAPIKey: v.GetString("routing.google_api_key"),
			Timeout:      v.GetDuration("routing.timeout"),
			CacheTTL:     v.GetDuration("routing.cache_ttl"),
		},
		Geometry: GeometryConfig{
			Engine: strings.ToLower(v.GetString("geometry.engine")),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
	}
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Grid.BoundingBox().Check(); err != nil {
		errs = append(errs, fmt.Errorf("grid: %w", err))
	}
	if c.Grid.NumTilesX <= 0 || c.Grid.NumTilesY <= 0 {
		errs = append(errs, fmt.Errorf("grid: tile counts must be positive, got %dx%d", c.Grid.NumTilesX, c.Grid.NumTilesY))
	}
	if c.Matching.ScheduleWindow <= 0 {
		errs = append(errs, errors.New("matching: schedule window must be positive"))
	}
	if c.Matching.ProximityRadiusMeters <= 0 {
		errs = append(errs, errors.New("matching: proximity radius must be positive"))
	}
	if c.Matching.Concurrency <= 0 {
		errs = append(errs, errors.New("matching: concurrency must be positive"))
	}
	if c.Matching.Timeout <= 0 {
		errs = append(errs, errors.New("matching: timeout must be positive"))
	}

	switch c.Routing.Provider {
	case "osrm":
		if c.Routing.OSRMURL == "" {
			errs = append(errs, errors.New("routing: osrm_url is required for the osrm provider"))
		}
	case "google":
		if c.Routing.GoogleAPIKey == "" {
			errs = append(errs, errors.New("routing: google_api_key is required for the google provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("routing: unknown provider %q", c.Routing.Provider))
	}

	switch c.Geometry.Engine {
	case "postgis", "planar":
	default:
		errs = append(errs, fmt.Errorf("geometry: unknown engine %q", c.Geometry.Engine))
	}

	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		errs = append(errs, errors.New("new_relic: license_key is required when enabled"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka: topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}
