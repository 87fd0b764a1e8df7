package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Geocoding    GeocodingConfig
	RateLimit    RateLimitConfig
	Verification VerificationConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	StatsTTLSec int
}

type GeocodingConfig struct {
	Enabled    bool
	BaseURL    string
	UserAgent  string
	TimeoutSec int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// VerificationConfig carries the full scoring policy. Every weight,
// threshold and lookup table is overridable; nothing is compiled in.
type VerificationConfig struct {
	AutoVerifyThreshold   float64
	ManualReviewThreshold float64

	SpatialWeight       float64
	TemporalWeight      float64
	ReporterWeight      float64
	CorroborationWeight float64
	DescriptionWeight   float64

	CorroborationRadiusKm    float64
	CorroborationWindowHours int

	Bounds        BoundingBox
	ConflictZones []ConflictZone

	DetailKeywords []string

	StoreTimeoutSec int
}

// BoundingBox is a lat/lon rectangle, inclusive on all edges.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// ConflictZone associates incident types with a region where they are
// historically concentrated. The spatial evaluator scores InsideScore
// within the rectangle and OutsideScore elsewhere.
type ConflictZone struct {
	Name         string
	Bounds       BoundingBox
	Types        []string
	InsideScore  float64
	OutsideScore float64
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/sentinel")

	viper.SetEnvPrefix("SENTINEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.allowedOrigins", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("server.development", true)

	viper.SetDefault("sqlite.path", "./data/sentinel.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.statsTTLSec", 300)

	viper.SetDefault("geocoding.enabled", true)
	viper.SetDefault("geocoding.baseURL", "https://nominatim.openstreetmap.org/reverse")
	viper.SetDefault("geocoding.userAgent", "SentinelNG/1.0")
	viper.SetDefault("geocoding.timeoutSec", 10)

	viper.SetDefault("ratelimit.requestsPerMinute", 60)

	viper.SetDefault("verification.autoVerifyThreshold", 0.8)
	viper.SetDefault("verification.manualReviewThreshold", 0.5)

	viper.SetDefault("verification.spatialWeight", 0.20)
	viper.SetDefault("verification.temporalWeight", 0.15)
	viper.SetDefault("verification.reporterWeight", 0.30)
	viper.SetDefault("verification.corroborationWeight", 0.25)
	viper.SetDefault("verification.descriptionWeight", 0.10)

	viper.SetDefault("verification.corroborationRadiusKm", 10.0)
	viper.SetDefault("verification.corroborationWindowHours", 6)
	viper.SetDefault("verification.storeTimeoutSec", 5)

	// Approximate national bounding box. A coarse proxy, not a polygon:
	// points near the corners can belong to neighboring countries.
	viper.SetDefault("verification.bounds.minLat", 4.0)
	viper.SetDefault("verification.bounds.maxLat", 14.0)
	viper.SetDefault("verification.bounds.minLon", 2.5)
	viper.SetDefault("verification.bounds.maxLon", 15.0)

	viper.SetDefault("verification.conflictZones", []map[string]interface{}{
		{
			"name":         "northeast_insurgency",
			"bounds":       map[string]interface{}{"minLat": 10.5, "maxLat": 13.9, "minLon": 11.0, "maxLon": 14.5},
			"types":        []string{"insurgent_attack", "bomb_blast"},
			"insideScore":  0.9,
			"outsideScore": 0.6,
		},
		{
			"name":         "northwest_banditry",
			"bounds":       map[string]interface{}{"minLat": 11.0, "maxLat": 13.5, "minLon": 4.0, "maxLon": 9.0},
			"types":        []string{"banditry", "kidnapping", "cattle_rustling"},
			"insideScore":  0.9,
			"outsideScore": 0.7,
		},
		{
			"name":         "middle_belt_clashes",
			"bounds":       map[string]interface{}{"minLat": 6.5, "maxLat": 10.0, "minLon": 7.0, "maxLon": 10.0},
			"types":        []string{"farmer_herder_clash"},
			"insideScore":  0.9,
			"outsideScore": 0.7,
		},
	})

	viper.SetDefault("verification.detailKeywords", []string{
		"armed", "men", "attacked", "village", "town", "killed", "injured",
		"gunmen", "soldiers", "police", "morning", "evening", "night",
		"road", "market", "church", "mosque", "school", "fled", "casualties",
	})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
