package equipment

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// ManagerConfig holds the settings used to start (or reach) the network
// manager process.
type ManagerConfig struct {
	Host       string `xml:"host"`
	Port       int    `xml:"port"`
	DisableTLS bool   `xml:"disable_tls"`
	Debug      bool   `xml:"debug"`
	CertFile   string `xml:"certfile"`
	KeyFile    string `xml:"keyfile"`
}

// DefaultManagerPort is used when the configuration file does not specify a
// manager port.
const DefaultManagerPort = 1875

// Config is the parsed configuration file: the manager settings plus the
// equipment database. The file is read once and treated as read-only.
type Config struct {
	XMLName   xml.Name      `xml:"msl"`
	Manager   ManagerConfig `xml:"manager"`
	Equipment []Record      `xml:"equipment"`
}

// Load reads and parses the XML configuration file at path.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}

	if cfg.Manager.Host == "" {
		cfg.Manager.Host = "localhost"
	}
	if cfg.Manager.Port == 0 {
		cfg.Manager.Port = DefaultManagerPort
	}
	return &cfg, nil
}

// Find returns the equipment record with the given alias.
func (c *Config) Find(alias string) (*Record, error) {
	for i := range c.Equipment {
		if c.Equipment[i].Alias == alias {
			return &c.Equipment[i], nil
		}
	}
	return nil, fmt.Errorf("there is no equipment record with alias %q", alias)
}

// Aliases returns the aliases of every record in the equipment database, in
// file order.
func (c *Config) Aliases() []string {
	aliases := make([]string, len(c.Equipment))
	for i := range c.Equipment {
		aliases[i] = c.Equipment[i].Alias
	}
	return aliases
}
