package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Enabled             bool     `yaml:"enabled"`
		Addr                string   `yaml:"addr" validate:"required_if=Enabled true"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds" validate:"gte=0"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds" validate:"gte=0"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds" validate:"gte=0"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs" validate:"dive,cidr"`
	} `yaml:"server"`
	Valuation Valuation `yaml:"valuation"`
}

type Valuation struct {
	Snapshot        string   `yaml:"snapshot"`
	StartingAmount  float64  `yaml:"starting_amount" validate:"gt=0"`
	RoundTo         *int     `yaml:"round_to" validate:"omitempty,gte=0"`
	Depth           bool     `yaml:"depth"`
	IntervalSeconds int      `yaml:"interval_seconds" validate:"gte=1"`
	TopN            int      `yaml:"top_n" validate:"gte=0"`
	Exchanges       []string `yaml:"exchanges"`
	Paths           []Path   `yaml:"paths" validate:"dive"`
}

// Path is a configured loop to value on every monitor tick. MaxVolume is the plain form of
// Minimum (Minimum = -ln(MaxVolume)); Minimum wins when both are set.
type Path struct {
	Name      string   `yaml:"name" validate:"required"`
	Loop      []string `yaml:"loop" validate:"min=2,dive,required"`
	Minimum   *float64 `yaml:"minimum"`
	MaxVolume *float64 `yaml:"max_volume" validate:"omitempty,gt=0"`
	Labels    []string `yaml:"labels"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Enabled = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Valuation.StartingAmount = 100
	c.Valuation.IntervalSeconds = 30
	c.Valuation.TopN = 5
	return c
}

// Load layers defaults, .env, the YAML file named by PATHVAL_CONFIG and PATHVAL_* variables.
func Load() (Config, error) {
	_ = godotenv.Load()
	c := defaultConfig()
	if path := os.Getenv("PATHVAL_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("PATHVAL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PATHVAL_LOG_PRETTY"); v != "" {
		c.Logging.Pretty = truthy(v)
	}
	if v := os.Getenv("PATHVAL_SERVER_ENABLED"); v != "" {
		c.Server.Enabled = truthy(v)
	}
	if v := os.Getenv("PATHVAL_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PATHVAL_PPROF"); v != "" {
		c.Server.Pprof = truthy(v)
	}
	if v := os.Getenv("PATHVAL_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("PATHVAL_SNAPSHOT"); v != "" {
		c.Valuation.Snapshot = v
	}
	if v := os.Getenv("PATHVAL_STARTING_AMOUNT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, fmt.Errorf("PATHVAL_STARTING_AMOUNT: %w", err)
		}
		c.Valuation.StartingAmount = f
	}
	if v := os.Getenv("PATHVAL_ROUND_TO"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("PATHVAL_ROUND_TO: %w", err)
		}
		c.Valuation.RoundTo = &n
	}
	if v := os.Getenv("PATHVAL_DEPTH"); v != "" {
		c.Valuation.Depth = truthy(v)
	}
	if v := os.Getenv("PATHVAL_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("PATHVAL_INTERVAL_SECONDS: %w", err)
		}
		c.Valuation.IntervalSeconds = n
	}
	if v := os.Getenv("PATHVAL_EXCHANGES"); v != "" {
		c.Valuation.Exchanges = splitCSV(v)
	}
	// Paths come from YAML only.
	return c, nil
}

var validate = validator.New()

// Validate checks field constraints after loading.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
