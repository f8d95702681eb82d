package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Addr returns host:port for the local gateway server.
func (c *Config) Addr() string {
	addr := c.Gateway.Address
	if addr == "" {
		addr = "127.0.0.1"
	}
	p := c.Gateway.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, journalPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", "127.0.0.1:8080", "gateway listen address")
	journalPtr := flag.String("journal", "./.journal", "pebble journal path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *journalPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies CHATCORE_* environment overrides onto cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	if v := os.Getenv("CHATCORE_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Gateway.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Gateway.Port = pi
			}
		} else {
			cfg.Gateway.Address = v
		}
	}
	if v := os.Getenv("CHATCORE_USER_ID"); v != "" {
		envUsed = true
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("CHATCORE_USERNAME"); v != "" {
		envUsed = true
		cfg.Identity.Username = v
	}
	if v := os.Getenv("CHATCORE_TRANSPORT_URL"); v != "" {
		envUsed = true
		cfg.Transport.URL = v
	}
	if v := os.Getenv("CHATCORE_SEND_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			envUsed = true
			cfg.Transport.SendRPS = f
		}
	}
	if v := os.Getenv("CHATCORE_SEND_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			envUsed = true
			cfg.Transport.SendBurst = n
		}
	}
	if v := os.Getenv("CHATCORE_GATEWAY_TOKEN"); v != "" {
		envUsed = true
		cfg.Gateway.Token = v
	}
	if v := os.Getenv("CHATCORE_JOURNAL_PATH"); v != "" {
		envUsed = true
		cfg.Journal.Path = v
		cfg.Journal.Enabled = true
	}
	if v := os.Getenv("CHATCORE_COMPACTION_CRON"); v != "" {
		envUsed = true
		cfg.Journal.Compaction.Enabled = true
		cfg.Journal.Compaction.Cron = v
	}
	if v := os.Getenv("CHATCORE_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the CHATCORE_CONFIG environment variable when the flag was not
// explicitly set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATCORE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
