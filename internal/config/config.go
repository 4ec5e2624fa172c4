package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Configuration struct {
	Server         ServerConfig         `json:"server"`
	Security       SecurityConfig       `json:"security"`
	Logging        LoggingConfig        `json:"logging"`
	Almacenamiento AlmacenamientoConfig `json:"almacenamiento"`
	Firma          FirmaConfig          `json:"firma"`
	Database       DatabaseConfig       `json:"database"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type SecurityConfig struct {
	CookieSecret      string        `json:"cookie_secret"`
	SessionTimeout    time.Duration `json:"session_timeout"`
	PasswordMinLength int           `json:"password_min_length"`
	MaxFailedAttempts int           `json:"max_failed_attempts"`
	LockoutDuration   time.Duration `json:"lockout_duration"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// AlmacenamientoConfig bounds document uploads. MaxFileBytes applies
// per file, including each item of a bulk upload.
type AlmacenamientoConfig struct {
	MaxFileBytes          int64    `json:"max_file_bytes"`
	ExtensionesPermitidas []string `json:"extensiones_permitidas"`
}

type FirmaConfig struct {
	KeyBits       int           `json:"key_bits"`
	VigenciaFirma time.Duration `json:"vigencia_firma"`
}

type DatabaseConfig struct {
	Host            string `json:"host"`
	Port            string `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	MaxOpenConns    int    `json:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime"`
}

var (
	config     *Configuration
	configOnce sync.Once
	configLock sync.RWMutex
)

func LoadConfig(filePath string) (*Configuration, error) {
	var err error

	configOnce.Do(func() {
		var file *os.File
		file, err = os.Open(filePath)
		if err != nil {
			err = fmt.Errorf("failed to open config file: %w", err)
			return
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		config = &Configuration{}
		err = decoder.Decode(config)
		if err != nil {
			err = fmt.Errorf("failed to decode config file: %w", err)
			return
		}

		applyDefaults(config)
	})

	return config, err
}

func applyDefaults(c *Configuration) {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Almacenamiento.MaxFileBytes == 0 {
		c.Almacenamiento.MaxFileBytes = 2 << 20
	}
	if len(c.Almacenamiento.ExtensionesPermitidas) == 0 {
		c.Almacenamiento.ExtensionesPermitidas = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".png", ".jpg"}
	}
	if c.Firma.KeyBits == 0 {
		c.Firma.KeyBits = 2048
	}
	if c.Firma.VigenciaFirma == 0 {
		c.Firma.VigenciaFirma = 5 * 365 * 24 * time.Hour
	}
}

func GetConfig() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

func InitializeDefaultConfig() *Configuration {
	configLock.Lock()
	defer configLock.Unlock()

	config = &Configuration{
		Server: ServerConfig{
			Port:         "8000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Security: SecurityConfig{
			CookieSecret:      "archivey-cloud-secret-key",
			SessionTimeout:    24 * time.Hour,
			PasswordMinLength: 8,
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Almacenamiento: AlmacenamientoConfig{
			MaxFileBytes:          2 << 20,
			ExtensionesPermitidas: []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".png", ".jpg"},
		},
		Firma: FirmaConfig{
			KeyBits:       2048,
			VigenciaFirma: 5 * 365 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Password:        "password",
			Name:            "archivey_cloud",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 300,
		},
	}

	return config
}

func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()

	logger.Info("Application configuration",
		zap.String("port", config.Server.Port),
		zap.Duration("read_timeout", config.Server.ReadTimeout),
		zap.Duration("write_timeout", config.Server.WriteTimeout),
		zap.Int64("max_file_bytes", config.Almacenamiento.MaxFileBytes),
		zap.Int("key_bits", config.Firma.KeyBits),
		zap.Duration("vigencia_firma", config.Firma.VigenciaFirma),
		zap.String("database_host", config.Database.Host),
		zap.String("database_name", config.Database.Name),
	)
}
