// Package config loads the YAML topology describing which agents a
// process should run and how their sockets should be wired.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level deployment description: where the name server
// lives, and which agents this process should start.
type Config struct {
	AppName string `yaml:"app_name"`
	Debug   bool   `yaml:"debug"`

	Nameserver NameserverConfig `yaml:"nameserver"`
	Agents     []AgentConfig    `yaml:"agents"`
}

// NameserverConfig locates the name registry.
type NameserverConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AgentConfig describes one agent to start: its name, control host, and
// the sockets it should bind or connect at startup.
type AgentConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Binds    []BindConfig    `yaml:"binds,omitempty"`
	Connects []ConnectConfig `yaml:"connects,omitempty"`
}

// BindConfig mirrors agent.BindOptions' YAML-expressible subset.
type BindConfig struct {
	Alias   string `yaml:"alias"`
	Role    string `yaml:"role"`
	Port    int    `yaml:"port"`
	Codec   string `yaml:"codec,omitempty"`
	Handler string `yaml:"handler,omitempty"`
}

// ConnectConfig mirrors agent.ConnectOptions' YAML-expressible subset.
type ConnectConfig struct {
	Alias   string `yaml:"alias"`
	Address string `yaml:"address"`
	Role    string `yaml:"role"`
	Handler string `yaml:"handler,omitempty"`
}

// Load reads and validates a topology file: the name server host and each
// agent's host default to "0.0.0.0", and an agent without a name or a bind
// without a role is rejected. Ports and other socket fields are not
// defaulted.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}

	if cfg.Nameserver.Host == "" {
		cfg.Nameserver.Host = "0.0.0.0"
	}

	for i, a := range cfg.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("config: agents[%d] is missing a name", i)
		}
		if a.Host == "" {
			cfg.Agents[i].Host = "0.0.0.0"
		}
		for j, b := range a.Binds {
			if b.Role == "" {
				return nil, fmt.Errorf("config: agents[%d].binds[%d] is missing a role", i, j)
			}
		}
	}

	return &cfg, nil
}
