// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FileName  = "config.json"
	EnvPrefix = "OLMEDA"

	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreODBC   = "odbc"

	accessDriverPrefix = "Driver={Microsoft Access Driver (*.mdb, *.accdb)};"
)

type Config struct {
	LogLevel    string      `mapstructure:"logLevel"`
	LogPath     string      `mapstructure:"logPath"`
	LogFormat   string      `mapstructure:"logFormat"`
	Development Development `mapstructure:"development"`
	Realtime    Realtime    `mapstructure:"realtime"`
	Store       Store       `mapstructure:"store"`
	Keyring     Keyring     `mapstructure:"keyring"`
	HTTP        HTTP        `mapstructure:"http"`
	// StatsInterval controla o log periódico das estatísticas do cliente
	StatsInterval time.Duration `mapstructure:"statsInterval"`
}

type Development struct {
	Enabled  bool `mapstructure:"enabled"`
	DebugLog bool `mapstructure:"debugLog"`
}

type Realtime struct {
	Enabled            bool   `mapstructure:"enabled"`
	ServerURL          string `mapstructure:"serverUrl"`
	UseSSL             bool   `mapstructure:"useSSL"`
	InsecureSkipVerify bool   `mapstructure:"insecureSkipVerify"`
	// AuthToken e DoctorID semeiam o cofre de credenciais na primeira execução
	AuthToken        string        `mapstructure:"authToken"`
	DoctorID         string        `mapstructure:"doctorId"`
	InstanceID       string        `mapstructure:"instanceId"`
	ChannelTemplate  string        `mapstructure:"channelTemplate"`
	Host             string        `mapstructure:"host"`
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
	HandlerTimeout   time.Duration `mapstructure:"handlerTimeout"`
	HeartBeat        time.Duration `mapstructure:"heartBeat"`
	DisableHeartBeat bool          `mapstructure:"disableHeartBeat"`
	TokenLeeway      time.Duration `mapstructure:"tokenLeeway"`
	Reconnect        Reconnect     `mapstructure:"reconnect"`
}

type Reconnect struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	BaseDelay   time.Duration `mapstructure:"baseDelay"`
	MaxDelay    time.Duration `mapstructure:"maxDelay"`
}

type Store struct {
	Driver           string `mapstructure:"driver"` // memory, redis, sqlite, odbc
	DSN              string `mapstructure:"dsn"`
	MaxConns         int    `mapstructure:"maxConns"`
	RedisAddr        string `mapstructure:"redisAddr"`
	RedisPassword    string `mapstructure:"redisPassword"`
	RedisDB          int    `mapstructure:"redisDb"`
	RedisPrefix      string `mapstructure:"redisPrefix"`
	MaxNotifications int64  `mapstructure:"maxNotifications"`
}

type Keyring struct {
	// Disabled guarda as credenciais só em memória (desenvolvimento e testes)
	Disabled     bool   `mapstructure:"disabled"`
	ServiceName  string `mapstructure:"serviceName"`
	FileDir      string `mapstructure:"fileDir"`
	FilePassword string `mapstructure:"filePassword"`
}

type HTTP struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// PathFor devolve o caminho do config.json ao lado do executável
func PathFor(exePath string) string {
	return filepath.Join(filepath.Dir(exePath), FileName)
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logPath", filepath.Join(dir, "olmeda-realtime.log"))
	v.SetDefault("logFormat", "json")
	v.SetDefault("development.enabled", false)
	v.SetDefault("development.debugLog", false)

	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.serverUrl", "https://odonto-olmeda-production.up.railway.app/ws")
	v.SetDefault("realtime.useSSL", true)
	v.SetDefault("realtime.insecureSkipVerify", false)
	v.SetDefault("realtime.authToken", "")
	v.SetDefault("realtime.doctorId", "")
	v.SetDefault("realtime.instanceId", "")
	v.SetDefault("realtime.channelTemplate", "/user-queue/appointments/{identity}")
	v.SetDefault("realtime.host", "")
	v.SetDefault("realtime.handshakeTimeout", "15s")
	v.SetDefault("realtime.handlerTimeout", "30s")
	v.SetDefault("realtime.heartBeat", "10s")
	v.SetDefault("realtime.disableHeartBeat", false)
	v.SetDefault("realtime.tokenLeeway", "30s")
	v.SetDefault("realtime.reconnect.maxAttempts", 5)
	v.SetDefault("realtime.reconnect.baseDelay", "2s")
	v.SetDefault("realtime.reconnect.maxDelay", "30s")

	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.maxConns", 10)
	v.SetDefault("store.redisAddr", "")
	v.SetDefault("store.redisPassword", "")
	v.SetDefault("store.redisDb", 0)
	v.SetDefault("store.redisPrefix", "olmeda:realtime")
	v.SetDefault("store.maxNotifications", 200)

	v.SetDefault("keyring.disabled", false)
	v.SetDefault("keyring.serviceName", "olmeda-realtime")
	v.SetDefault("keyring.fileDir", filepath.Join(dir, "credentials"))
	v.SetDefault("keyring.filePassword", "")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", "127.0.0.1:8081")

	v.SetDefault("statsInterval", "30s")
}

// Load lê o config.json do caminho informado. Se o arquivo não existir, grava um com os valores
// padrão (como o serviço sempre fez). Variáveis OLMEDA_* e um .env no mesmo diretório sobrepõem o arquivo.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("erro ao ler .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v, dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("erro ao ler configuração %s: %w", path, err)
		}
		// grava antes de habilitar o ambiente para não persistir segredos do env
		if err := v.SafeWriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("erro ao criar configuração padrão %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("erro ao interpretar configuração %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate completa valores faltantes e rejeita combinações inválidas
func (c *Config) Validate() error {
	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0755); err != nil {
			return fmt.Errorf("erro ao criar diretório de log: %w", err)
		}
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 30 * time.Second
	}

	if err := c.Realtime.validate(c.Development.Enabled); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}

	if !c.Keyring.Disabled && c.Keyring.ServiceName == "" {
		return fmt.Errorf("keyring.serviceName não pode estar vazio")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr não pode estar vazio quando o HTTP está habilitado")
	}
	return nil
}

func (r *Realtime) validate(development bool) error {
	if r.InstanceID == "" {
		r.InstanceID = GenerateInstanceID()
	}
	if !r.Enabled {
		return nil
	}

	if r.ServerURL == "" {
		return fmt.Errorf("URL do servidor realtime não pode estar vazia quando o realtime está habilitado")
	}
	if r.Reconnect.MaxAttempts <= 0 {
		r.Reconnect.MaxAttempts = 5
	}
	if r.Reconnect.BaseDelay <= 0 {
		r.Reconnect.BaseDelay = 2 * time.Second
	}
	if r.Reconnect.MaxDelay <= 0 {
		r.Reconnect.MaxDelay = 30 * time.Second
	}
	if r.Reconnect.MaxDelay < r.Reconnect.BaseDelay {
		r.Reconnect.MaxDelay = r.Reconnect.BaseDelay
	}

	// Force SSL em produção
	if !development && !r.secure() {
		return fmt.Errorf("SSL é obrigatório em ambiente de produção")
	}
	return nil
}

// secure considera o esquema da URL antes da flag useSSL
func (r *Realtime) secure() bool {
	u, err := url.Parse(r.ServerURL)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "https", "wss":
			return true
		case "http", "ws":
			return false
		}
	}
	return r.UseSSL
}

func (s *Store) validate() error {
	if s.MaxConns <= 0 {
		s.MaxConns = 10 // valor padrão
	}

	switch s.Driver {
	case "", StoreMemory:
		s.Driver = StoreMemory
	case StoreRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("store.redisAddr não pode estar vazio com o driver redis")
		}
	case StoreSQLite:
		if s.DSN == "" {
			return fmt.Errorf("store.dsn não pode estar vazio com o driver sqlite")
		}
	case StoreODBC:
		if s.DSN == "" {
			return fmt.Errorf("store.dsn não pode estar vazio com o driver odbc")
		}
		if !strings.Contains(s.DSN, "Driver=") {
			s.DSN = accessDriverPrefix + s.DSN
		}
	default:
		return fmt.Errorf("driver de store desconhecido: %q", s.Driver)
	}
	return nil
}

// GenerateInstanceID gera um UUID v4 para identificar a instância
func GenerateInstanceID() string {
	return uuid.NewString()
}
