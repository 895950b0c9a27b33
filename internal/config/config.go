package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/qforms/internal/db"
	"github.com/soaringjerry/qforms/internal/utils"
)

// Environment variables
const (
	ENV_CONFIG_FILE = "QFORMS_CONFIG_FILE"

	// Variables overriding values of the config file
	ENV_ADDR         = "QFORMS_ADDR"
	ENV_JWT_SECRET   = "QFORMS_JWT_SECRET"
	ENV_STORE_DRIVER = "QFORMS_STORE_DRIVER"
	ENV_SQLITE_PATH  = "QFORMS_SQLITE_PATH"
	ENV_MONGO_URI    = "QFORMS_MONGO_URI"
	ENV_LOG_LEVEL    = "QFORMS_LOG_LEVEL"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	Logging utils.LoggerConfig `yaml:"logging"`

	Server struct {
		Addr         string   `yaml:"addr"`
		AllowOrigins []string `yaml:"allow_origins"`
		StaticDir    string   `yaml:"static_dir"`
	} `yaml:"server"`

	Auth struct {
		JWTSecret           string        `yaml:"jwt_secret"`
		TokenTTL            time.Duration `yaml:"token_ttl"`
		BootstrapAdminEmail string        `yaml:"bootstrap_admin_email"`
	} `yaml:"auth"`

	Store struct {
		Driver        string         `yaml:"driver"`
		SQLitePath    string         `yaml:"sqlite_path"`
		MigrationsDir string         `yaml:"migrations_dir"`
		Mongo         db.MongoConfig `yaml:"mongo"`
	} `yaml:"store"`

	Seed struct {
		QuestionnaireFile string `yaml:"questionnaire_file"`
		OwnerEmail        string `yaml:"owner_email"`
	} `yaml:"seed"`
}

func Default() *Config {
	c := &Config{}
	c.Logging.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Auth.TokenTTL = 30 * 24 * time.Hour
	c.Store.Driver = DriverMemory
	c.Store.SQLitePath = "data/qforms.db"
	c.Store.Mongo.Timeout = 10
	c.Store.Mongo.RunIndexCreation = true
	return c
}

// Parse decodes a YAML document over the defaults. Unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Load reads the file named by QFORMS_CONFIG_FILE (defaults when unset),
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	c := Default()
	if path := utils.SafeEnv(ENV_CONFIG_FILE, ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if c, err = Parse(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) ApplyEnv() {
	utils.OverrideFromEnv(&c.Server.Addr, ENV_ADDR)
	utils.OverrideFromEnv(&c.Auth.JWTSecret, ENV_JWT_SECRET)
	utils.OverrideFromEnv(&c.Store.Driver, ENV_STORE_DRIVER)
	utils.OverrideFromEnv(&c.Store.SQLitePath, ENV_SQLITE_PATH)
	utils.OverrideFromEnv(&c.Store.Mongo.URI, ENV_MONGO_URI)
	utils.OverrideFromEnv(&c.Logging.LogLevel, ENV_LOG_LEVEL)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var err error
	if strings.TrimSpace(c.Server.Addr) == "" {
		err = multierr.Append(err, errors.New("server.addr is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		err = multierr.Append(err, fmt.Errorf("auth.jwt_secret must be at least 16 characters (set %s)", ENV_JWT_SECRET))
	}
	if c.Auth.TokenTTL <= 0 {
		err = multierr.Append(err, errors.New("auth.token_ttl must be positive"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			err = multierr.Append(err, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverMongo:
		if strings.TrimSpace(c.Store.Mongo.URI) == "" {
			err = multierr.Append(err, errors.New("store.mongo.uri is required for the mongo driver"))
		}
		if c.Store.Mongo.Timeout <= 0 {
			err = multierr.Append(err, errors.New("store.mongo.timeout must be positive"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("store.driver %q is not one of memory, sqlite, mongo", c.Store.Driver))
	}
	switch strings.ToLower(c.Logging.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.log_level %q is not one of debug, info, warn, error", c.Logging.LogLevel))
	}
	if c.Logging.LogToFile && strings.TrimSpace(c.Logging.Filename) == "" {
		err = multierr.Append(err, errors.New("logging.filename is required when log_to_file is set"))
	}
	if c.Seed.QuestionnaireFile != "" && strings.TrimSpace(c.Seed.OwnerEmail) == "" {
		err = multierr.Append(err, errors.New("seed.owner_email is required when seed.questionnaire_file is set"))
	}
	return err
}
