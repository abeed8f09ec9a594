package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/smabibs/SiPerpus/circulation/internal/service"
	cb "github.com/smabibs/SiPerpus/pkg/circuit_breaker"
	"github.com/smabibs/SiPerpus/pkg/database"
	"github.com/smabibs/SiPerpus/pkg/kafka"
	"github.com/smabibs/SiPerpus/pkg/logger"
	"github.com/smabibs/SiPerpus/pkg/middleware"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"CIRCULATION_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"CIRCULATION_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
	// AllowOrigins enables credentialed CORS for these origins; empty allows any origin without cookies.
	AllowOrigins []string      `yaml:"allowOrigins" envconfig:"CORS_ALLOW_ORIGINS"`
}

type Config struct {
	Server      HTTPServer         `yaml:"server"`
	Database    database.DB        `yaml:"db"`
	Log         logger.Log         `yaml:"log"`
	Kafka       kafka.Config       `yaml:"kafka"`
	Breaker     cb.Config          `yaml:"breaker"`
	Session     middleware.Session `yaml:"session" json:"-"`
	Circulation service.Config     `yaml:"circulation"`
	// AuditTimeout bounds one audit write after commit.
	AuditTimeout time.Duration `yaml:"auditTimeout" envconfig:"AUDIT_TIMEOUT" default:"5s"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		for _, op := range ops {
			op(&config)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
