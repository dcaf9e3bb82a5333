package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"asset-service/internal/auth"
)

const (
	envPort                  = "PORT"
	envServerReadTimeout     = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	envServerShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"
	envDBHost                = "DB_HOST"
	envDBPort                = "DB_PORT"
	envDBName                = "DB_NAME"
	envDBUser                = "DB_USER"
	envDBPassword            = "DB_PASSWORD"
	envDBSSLMode             = "DB_SSL_MODE"
	envDBMaxConns            = "DB_MAX_CONNS"
	envDBMinConns            = "DB_MIN_CONNS"
	envAuthIssuer            = "AUTH_ISSUER"
	envAuthAudience          = "AUTH_AUDIENCE"
	envAuthSigningKeys       = "AUTH_SIGNING_KEYS"
	envAuthActiveKeyID       = "AUTH_ACTIVE_KEY_ID"
	envAuthTokenExpiry       = "AUTH_TOKEN_EXPIRY"
	envAuthTokenNotBefore    = "AUTH_TOKEN_NOT_BEFORE"
	envAuthTokenLeeway       = "AUTH_TOKEN_LEEWAY"
	envPublicPathRules       = "PUBLIC_PATH_RULES"
	envVaultBaseURL          = "VAULT_BASE_URL"
	envVaultAudience         = "VAULT_AUDIENCE"
	envVaultTokenExpiry      = "VAULT_TOKEN_EXPIRY"
	envVaultMaxUploadSize    = "VAULT_MAX_UPLOAD_SIZE"
	envVaultUploadTypes      = "VAULT_UPLOAD_CONTENT_TYPES"
	envVaultReadTypes        = "VAULT_READ_CONTENT_TYPES"
	envReadTokenCacheTTL     = "READ_TOKEN_CACHE_TTL"
	envVaultPingTimeout      = "VAULT_PING_TIMEOUT"
)

const (
	defaultServerPort         = "8080"
	defaultServerReadTimeout  = 10 * time.Second
	defaultServerWriteTimeout = 10 * time.Second
	defaultServerShutdown     = 10 * time.Second
	defaultDBHost             = "localhost"
	defaultDBPort             = 5432
	defaultDBName             = "assetservice"
	defaultDBUser             = "assetservice_app"
	defaultDBSSLMode          = "disable"
	defaultDBMaxConns         = 25
	defaultDBMinConns         = 5
	defaultAuthIssuer         = "asset-service"
	defaultAuthAudience       = "asset-service"
	defaultAuthTokenExpiry    = 60 * time.Minute
	defaultVaultAudience      = "asset-vault"
	defaultVaultTokenExpiry   = 15 * time.Minute
	defaultVaultMaxUpload     = int64(50 * 1024 * 1024)
	defaultUploadTypes        = "image/png,image/jpeg,image/gif,image/webp"
	defaultReadTypes          = "*"
	defaultReadTokenCacheTTL  = 5 * time.Minute
	defaultVaultPingTimeout   = 5 * time.Second
	defaultPublicPathRules    = "/health=GET|HEAD;/ping=GET;/metrics/*=GET"

	minSigningSecretLength   = 32
	minUniqueCharsInSecret   = 16
	minRepeatedCharThreshold = 4
	maxRepeatedChars         = 2
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Vault     VaultConfig
	PathRules []auth.PathRule
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// AuthConfig drives the identity-token codec: the tokens the API
// server accepts on its own routes.
type AuthConfig struct {
	Issuer      string
	Audience    string
	Expiry      time.Duration
	NotBefore   time.Duration
	Leeway      time.Duration
	Keys        []auth.SigningKey
	ActiveKeyID string
}

// VaultConfig drives the capability-token codec and the asset-store
// client. Vault tokens are signed with the same key set but carry
// their own audience and a much shorter lifetime.
type VaultConfig struct {
	BaseURL            string
	Audience           string
	TokenExpiry        time.Duration
	MaxUploadSize      int64
	UploadContentTypes []string
	ReadContentTypes   []string
	ReadTokenCacheTTL  time.Duration
	PingTimeout        time.Duration
}

func Load() (*Config, error) {
	keys, err := parseSigningKeys(os.Getenv(envAuthSigningKeys))
	if err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	pathRules, err := parsePathRules(getEnv(envPublicPathRules, defaultPublicPathRules))
	if err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv(envPort, defaultServerPort),
			ReadTimeout:     getDurationEnv(envServerReadTimeout, defaultServerReadTimeout),
			WriteTimeout:    getDurationEnv(envServerWriteTimeout, defaultServerWriteTimeout),
			ShutdownTimeout: getDurationEnv(envServerShutdownTimeout, defaultServerShutdown),
		},
		Database: DatabaseConfig{
			Host:     getEnv(envDBHost, defaultDBHost),
			Port:     getIntEnv(envDBPort, defaultDBPort),
			Database: getEnv(envDBName, defaultDBName),
			User:     getEnv(envDBUser, defaultDBUser),
			Password: os.Getenv(envDBPassword),
			SSLMode:  getEnv(envDBSSLMode, defaultDBSSLMode),
			MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
			MinConns: getIntEnv(envDBMinConns, defaultDBMinConns),
		},
		Auth: AuthConfig{
			Issuer:      getEnv(envAuthIssuer, defaultAuthIssuer),
			Audience:    getEnv(envAuthAudience, defaultAuthAudience),
			Expiry:      getDurationEnv(envAuthTokenExpiry, defaultAuthTokenExpiry),
			NotBefore:   getDurationEnv(envAuthTokenNotBefore, 0),
			Leeway:      getDurationEnv(envAuthTokenLeeway, 0),
			Keys:        keys,
			ActiveKeyID: getEnv(envAuthActiveKeyID, firstKeyID(keys)),
		},
		Vault: VaultConfig{
			BaseURL:            os.Getenv(envVaultBaseURL),
			Audience:           getEnv(envVaultAudience, defaultVaultAudience),
			TokenExpiry:        getDurationEnv(envVaultTokenExpiry, defaultVaultTokenExpiry),
			MaxUploadSize:      getInt64Env(envVaultMaxUploadSize, defaultVaultMaxUpload),
			UploadContentTypes: splitList(getEnv(envVaultUploadTypes, defaultUploadTypes)),
			ReadContentTypes:   splitList(getEnv(envVaultReadTypes, defaultReadTypes)),
			ReadTokenCacheTTL:  getDurationEnv(envReadTokenCacheTTL, defaultReadTokenCacheTTL),
			PingTimeout:        getDurationEnv(envVaultPingTimeout, defaultVaultPingTimeout),
		},
		PathRules: pathRules,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf(errPortRequiredFmt)
	}

	if c.Database.Password == "" {
		return fmt.Errorf(errDBPasswordRequiredFmt)
	}

	if len(c.Auth.Keys) == 0 {
		return fmt.Errorf(errSigningKeysRequiredFmt)
	}

	activeFound := false
	for _, key := range c.Auth.Keys {
		if len(key.Secret) < minSigningSecretLength {
			return fmt.Errorf(errSigningSecretMinLengthFmt, key.ID, minSigningSecretLength)
		}
		if !hasMinimumEntropy(string(key.Secret)) {
			return fmt.Errorf(errSigningSecretLowEntropyFmt, key.ID)
		}
		if key.ID == c.Auth.ActiveKeyID {
			activeFound = true
		}
	}
	if !activeFound {
		return fmt.Errorf(errActiveKeyUnknownFmt, c.Auth.ActiveKeyID)
	}

	if c.Vault.BaseURL == "" {
		return fmt.Errorf(errVaultBaseURLRequiredFmt)
	}

	if c.Vault.MaxUploadSize <= 0 {
		return fmt.Errorf(errMaxUploadSizePositiveFmt)
	}

	return nil
}

// parseSigningKeys parses "kid1:secret1;kid2:secret2". Every deployed
// instance must list all currently trusted keys; the active key is the
// one new tokens are signed with.
func parseSigningKeys(raw string) ([]auth.SigningKey, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf(errSigningKeysRequiredFmt)
	}

	var keys []auth.SigningKey
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, secret, found := strings.Cut(entry, ":")
		if !found || kid == "" || secret == "" {
			return nil, fmt.Errorf(errSigningKeyEntryFmt, entry)
		}
		if seen[kid] {
			return nil, fmt.Errorf(errSigningKeyDuplicateFmt, kid)
		}
		seen[kid] = true
		keys = append(keys, auth.SigningKey{ID: kid, Secret: []byte(secret)})
	}
	return keys, nil
}

// parsePathRules parses "pattern=GET|HEAD;pattern2=". An empty method
// list is legal and makes the rule revoke an earlier, broader one.
func parsePathRules(raw string) ([]auth.PathRule, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var rules []auth.PathRule
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern, methodList, found := strings.Cut(entry, "=")
		if !found || pattern == "" {
			return nil, fmt.Errorf(errPathRuleEntryFmt, entry)
		}
		rule := auth.PathRule{Pattern: pattern}
		for _, m := range strings.Split(methodList, "|") {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			rule.Methods = append(rule.Methods, auth.HTTPMethod(strings.ToUpper(m)))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstKeyID(keys []auth.SigningKey) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0].ID
}

func hasMinimumEntropy(secret string) bool {
	if len(secret) < minSigningSecretLength {
		return false
	}

	charCounts := make(map[rune]int)
	for _, char := range secret {
		charCounts[char]++
	}

	uniqueChars := len(charCounts)
	if uniqueChars < minUniqueCharsInSecret {
		return false
	}

	repeatedChars := 0
	for _, count := range charCounts {
		if count > len(secret)/minRepeatedCharThreshold {
			repeatedChars++
		}
	}

	return repeatedChars <= maxRepeatedChars
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}
