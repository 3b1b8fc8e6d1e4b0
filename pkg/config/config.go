package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all runtime settings, read from the environment
type Config struct {
	// Environment
	Environment string
	Port        string
	BaseDir     string

	// Database
	UseLocalDB  bool
	PostgresDSN string
	DataDir     string

	// Auth
	JWTSecret  string
	DisableSSO bool

	// Sites
	Projects     []string
	TreeCacheTTL time.Duration
	CacheDir     string
	ProductsFile string
	ReleasesFile string
	// WatchRepositories invalidates cached trees when templates change on disk
	WatchRepositories bool
	// TreeRefreshInterval rebuilds every project tree from its repository; 0 disables
	TreeRefreshInterval time.Duration

	// Jira
	JiraURL             string
	JiraEmail           string
	JiraToken           string
	JiraLabels          []string
	JiraCopyUpdatesEpic string
	JiraStatusInterval  time.Duration

	// CORS
	AllowedOrigins []string

	Debug bool
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// LoadConfig reads configuration from the environment, after loading the
// matching .env file for the current environment.
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		Port:        getEnvWithDefault("PORT", "8104"),
		BaseDir:     getEnvWithDefault("BASE_DIR", "."),
		UseLocalDB:  getEnvBool("USE_LOCAL_DB", true),
		DataDir:     getEnvWithDefault("DATA_DIR", "./data"),
		JWTSecret:   getEnvWithDefault("JWT_SECRET", defaultJWTSecret),
		DisableSSO:  getEnvBool("DISABLE_SSO", false) || getEnvBool("FLASK_DISABLE_SSO", false),
		Debug:       getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))

	config.Projects = splitList(getEnvWithDefault("PROJECTS", "ubuntu.com,canonical.com"))
	config.TreeCacheTTL = getEnvDuration("TREE_CACHE_TTL", 5*time.Minute)
	config.CacheDir = getEnvWithDefault("CACHE_DIR", config.BaseDir+"/tree-cache")
	config.ProductsFile = getEnvWithDefault("PRODUCTS_FILE", "data/data.yaml")
	config.ReleasesFile = getEnvWithDefault("RELEASES_FILE", "data/releases.yaml")
	config.WatchRepositories = getEnvBool("WATCH_REPOSITORIES", false)
	config.TreeRefreshInterval = getEnvDuration("TREE_REFRESH_INTERVAL", 30*time.Minute)

	config.JiraURL = strings.TrimRight(strings.TrimSpace(os.Getenv("JIRA_URL")), "/")
	config.JiraEmail = strings.TrimSpace(os.Getenv("JIRA_EMAIL"))
	config.JiraToken = strings.TrimSpace(os.Getenv("JIRA_TOKEN"))
	config.JiraLabels = splitList(os.Getenv("JIRA_LABELS"))
	config.JiraCopyUpdatesEpic = strings.TrimSpace(os.Getenv("JIRA_COPY_UPDATES_EPIC"))
	config.JiraStatusInterval = getEnvDuration("JIRA_STATUS_INTERVAL", 5*time.Minute)

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = splitList(allowedOrigins)
	}

	if config.Environment == "production" {
		if config.PostgresDSN != "" {
			config.UseLocalDB = false
		}
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per process)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) && c.IsProduction() && !c.DisableSSO {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}

	if !c.UseLocalDB && c.PostgresDSN == "" {
		return fmt.Errorf("incomplete database configuration: set POSTGRES_DSN or USE_LOCAL_DB=true")
	}

	if len(c.Projects) == 0 {
		return fmt.Errorf("PROJECTS must list at least one site")
	}

	if c.JiraURL != "" && (c.JiraEmail == "" || c.JiraToken == "") {
		return fmt.Errorf("JIRA_EMAIL and JIRA_TOKEN are required when JIRA_URL is set")
	}

	return nil
}

// IsProduction reports whether we run in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether we run in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// HasProject reports whether name is one of the configured sites
func (c *Config) HasProject(name string) bool {
	for _, p := range c.Projects {
		if p == name {
			return true
		}
	}
	return false
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("300").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=VALUE lines into the environment without
// overriding variables that are already set.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// strip surrounding quotes
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
