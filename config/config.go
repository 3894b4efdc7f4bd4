package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is where Load looks for the JSON configuration file.
const DefaultPath = "config/config.json"

// CategoryConfig describes one entry of the forum taxonomy.
type CategoryConfig struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	DeployVersion      string
	// Identity privileges
	AdminUsernames  []string
	PrivilegedRoles []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: "mysql" (default) or "sqlite"
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPath      string
	// Redis for caching and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	RedisDisabled bool
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Forum engine tuning
	ExcerptLength       int
	DefaultPageSize     int
	MaxPageSize         int
	MaxTags             int
	ListCacheTTLSeconds int
	AllowSelfVote       bool
	Categories          []CategoryConfig
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration from DefaultPath and the environment. It should be called once during boot.
func Load() AppConfig {
	return LoadPath(DefaultPath)
}

// LoadPath is Load with an explicit JSON file location.
func LoadPath(path string) AppConfig {
	if loaded {
		return cfg
	}
	c, err := LoadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// LoadFile builds a configuration without touching the process-wide cache.
// Precedence: JSON file -> defaults -> environment variable overrides.
func LoadFile(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return AppConfig{}, err
	}
	if c.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET must be set in config or environment variables")
	}
	return c, nil
}

type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort"`
		JWTSecret          string   `json:"JWTSecret"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
		AdminUsernames     []string `json:"AdminUsernames"`
		PrivilegedRoles    []string `json:"PrivilegedRoles"`
		DeployVersion      string   `json:"DeployVersion"`
	} `json:"app"`
	Database struct {
		Driver      string `json:"Driver"`
		DatabaseURI string `json:"DatabaseURI"`
		DBHost      string `json:"DBHost"`
		DBPort      string `json:"DBPort"`
		DBUser      string `json:"DBUser"`
		DBPassword  string `json:"DBPassword"`
		DBName      string `json:"DBName"`
		DBPath      string `json:"DBPath"`
	} `json:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
		Disabled      bool   `json:"Disabled"`
	} `json:"redis"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		GinMode    string `json:"GinMode"`
		GinPath    string `json:"GinPath"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
	Forum struct {
		ExcerptLength       int              `json:"ExcerptLength"`
		DefaultPageSize     int              `json:"DefaultPageSize"`
		MaxPageSize         int              `json:"MaxPageSize"`
		MaxTags             int              `json:"MaxTags"`
		ListCacheTTLSeconds int              `json:"ListCacheTTLSeconds"`
		AllowSelfVote       bool             `json:"AllowSelfVote"`
		Categories          []CategoryConfig `json:"Categories"`
	} `json:"forum"`
}

// loadJSONConfig reads the grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw fileConfig
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.JWTSecret = raw.App.JWTSecret
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.AdminUsernames = raw.App.AdminUsernames
	out.PrivilegedRoles = raw.App.PrivilegedRoles
	out.DeployVersion = raw.App.DeployVersion

	out.DBDriver = raw.Database.Driver
	out.DatabaseURI = raw.Database.DatabaseURI
	out.DBHost = raw.Database.DBHost
	out.DBPort = raw.Database.DBPort
	out.DBUser = raw.Database.DBUser
	out.DBPassword = raw.Database.DBPassword
	out.DBName = raw.Database.DBName
	out.DBPath = raw.Database.DBPath

	out.RedisHost = raw.Redis.RedisHost
	out.RedisPort = raw.Redis.RedisPort
	out.RedisDB = raw.Redis.RedisDB
	out.RedisPassword = raw.Redis.RedisPassword
	out.RedisDisabled = raw.Redis.Disabled

	out.LogLevel = raw.Log.Level
	out.LogPath = raw.Log.Path
	out.GinMode = raw.Log.GinMode
	out.GinPath = raw.Log.GinPath
	out.LogMaxSizeMB = raw.Log.MaxSizeMB
	out.LogMaxBackups = raw.Log.MaxBackups
	out.LogMaxAgeDays = raw.Log.MaxAgeDays
	out.LogCompress = raw.Log.Compress

	out.ExcerptLength = raw.Forum.ExcerptLength
	out.DefaultPageSize = raw.Forum.DefaultPageSize
	out.MaxPageSize = raw.Forum.MaxPageSize
	out.MaxTags = raw.Forum.MaxTags
	out.ListCacheTTLSeconds = raw.Forum.ListCacheTTLSeconds
	out.AllowSelfVote = raw.Forum.AllowSelfVote
	out.Categories = raw.Forum.Categories
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if len(c.PrivilegedRoles) == 0 {
		c.PrivilegedRoles = []string{"admin", "moderator", "expert"}
	}
	if c.DeployVersion == "" {
		c.DeployVersion = "dev"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "farmqa"
	}
	if c.DBPath == "" {
		c.DBPath = "data/farmqa.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.ExcerptLength == 0 {
		c.ExcerptLength = 160
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 100
	}
	if c.MaxTags == 0 {
		c.MaxTags = 10
	}
	if c.ListCacheTTLSeconds == 0 {
		c.ListCacheTTLSeconds = 30
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}
}

// DefaultCategories is the taxonomy used when the config file defines none.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{ID: "crop-management", Label: "Crop Management", Icon: "🌾", Description: "Sowing, spacing, nutrition and harvest timing"},
		{ID: "pest-control", Label: "Pest Control", Icon: "🐛", Description: "Insects, mites and integrated pest management"},
		{ID: "plant-disease", Label: "Plant Disease", Icon: "🍂", Description: "Fungal, bacterial and viral crop diseases"},
		{ID: "soil-health", Label: "Soil Health", Icon: "🪱", Description: "Soil testing, fertility and organic matter"},
		{ID: "irrigation", Label: "Irrigation", Icon: "💧", Description: "Drip, sprinkler and water scheduling"},
		{ID: "equipment", Label: "Equipment", Icon: "🚜", Description: "Tractors, implements, rental and maintenance"},
		{ID: "market-prices", Label: "Market Prices", Icon: "📈", Description: "Mandi rates, selling and storage decisions"},
		{ID: "weather", Label: "Weather", Icon: "⛅", Description: "Forecasts, monsoon and climate risk"},
		{ID: "livestock", Label: "Livestock", Icon: "🐄", Description: "Dairy, poultry and animal health"},
		{ID: "government-schemes", Label: "Government Schemes", Icon: "🏛️", Description: "Subsidies, insurance and credit programs"},
		{ID: "general", Label: "General", Icon: "💬", Description: "Anything else about farming life"},
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("DEPLOY_VERSION", ""); v != "" {
		c.DeployVersion = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("DB_PATH", ""); v != "" {
		c.DBPath = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("REDIS_DISABLED", ""); v != "" {
		c.RedisDisabled = v == "true"
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("ADMIN_USERNAMES", ""); v != "" {
		c.AdminUsernames = splitAndTrim(v)
	}
	if v := getEnv("PRIVILEGED_ROLES", ""); v != "" {
		c.PrivilegedRoles = splitAndTrim(v)
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("FORUM_ALLOW_SELF_VOTE", ""); v != "" {
		c.AllowSelfVote = v == "true"
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute},
		{"REDIS_PORT", &c.RedisPort},
		{"REDIS_DB", &c.RedisDB},
		{"LOG_MAX_SIZE_MB", &c.LogMaxSizeMB},
		{"LOG_MAX_BACKUPS", &c.LogMaxBackups},
		{"LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays},
		{"FORUM_EXCERPT_LENGTH", &c.ExcerptLength},
		{"FORUM_DEFAULT_PAGE_SIZE", &c.DefaultPageSize},
		{"FORUM_MAX_PAGE_SIZE", &c.MaxPageSize},
		{"FORUM_MAX_TAGS", &c.MaxTags},
		{"FORUM_LIST_CACHE_TTL_SECONDS", &c.ListCacheTTLSeconds},
	}
	for _, it := range ints {
		v := getEnv(it.key, "")
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value %s for %s: %w", v, it.key, err)
		}
		*it.dst = n
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
