package sim

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all simulator configuration (flags + optional file + env
// overrides).
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Workload Workload `mapstructure:"workload"`
}

// Workload sizes the simulated world and its goroutines.
type Workload struct {
	Slots       int           `mapstructure:"slots"`
	Writers     int           `mapstructure:"writers"`
	Readers     int           `mapstructure:"readers"`
	Duration    time.Duration `mapstructure:"duration"`
	RetuneEvery time.Duration `mapstructure:"retune_every"`
}

// LoadConfig resolves configuration in the usual order: explicit flags win
// over SLOTSIM_* environment variables, which win over an optional
// slotsim.yaml, which wins over the flag defaults.
func LoadConfig(args []string) Config {
	fs := flag.NewFlagSet("slotsim", flag.ExitOnError)
	fs.String("addr", ":8080", "http listen address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Int("slots", 16, "number of account slots")
	fs.Int("writers", 4, "writer goroutines")
	fs.Int("readers", 8, "reader goroutines")
	fs.Duration("duration", 0, "stop after this long (0 = run until signal)")
	fs.Duration("retune-every", 2*time.Second, "interval between tuning republications")
	_ = fs.Parse(args) // ExitOnError

	v := viper.New()
	v.SetConfigName("slotsim")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; flags and env can fully configure

	v.SetEnvPrefix("SLOTSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindPFlag("server.addr", fs.Lookup("addr"))
	_ = v.BindPFlag("server.log_level", fs.Lookup("log-level"))
	_ = v.BindPFlag("workload.slots", fs.Lookup("slots"))
	_ = v.BindPFlag("workload.writers", fs.Lookup("writers"))
	_ = v.BindPFlag("workload.readers", fs.Lookup("readers"))
	_ = v.BindPFlag("workload.duration", fs.Lookup("duration"))
	_ = v.BindPFlag("workload.retune_every", fs.Lookup("retune-every"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Workload.Slots <= 0 {
		c.Workload.Slots = 16
	}
	if c.Workload.Writers <= 0 {
		c.Workload.Writers = 4
	}
	if c.Workload.Readers <= 0 {
		c.Workload.Readers = 8
	}
	if c.Workload.Duration < 0 {
		c.Workload.Duration = 0
	}
	if c.Workload.RetuneEvery <= 0 {
		c.Workload.RetuneEvery = 2 * time.Second
	}
}
