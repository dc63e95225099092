package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fabian4/Soft-Demo/pkg/constants"
)

var ErrUsage = errors.New("usage: <host> <port-or-service-name>")

type Config struct {
	Host      string
	PortToken string

	// Runtime fields, from the environment
	Network    string
	BufferSize int
}

// FromArgs builds the client configuration from the positional arguments
// (program name already stripped) and the UDPECHO_* environment.
func FromArgs(args []string) (*Config, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w (got %d arguments)", ErrUsage, len(args))
	}

	config := &Config{
		Host:       args[0],
		PortToken:  args[1],
		Network:    getEnv(constants.EnvNetwork, ""),
		BufferSize: getEnvInt(constants.EnvBufferSize, 0),
	}
	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Network == "" {
		config.Network = constants.DefaultNetwork
	}
	if config.BufferSize <= 0 {
		config.BufferSize = constants.ReceiveBufferSize
	}
}

func (c *Config) Validate() error {
	switch c.Network {
	case "udp", "udp4", "udp6":
	default:
		return fmt.Errorf("invalid %s %q: want udp, udp4 or udp6", constants.EnvNetwork, c.Network)
	}
	if c.BufferSize > constants.MaxDatagramSize+1 {
		return fmt.Errorf("invalid %s %d: exceeds %d", constants.EnvBufferSize, c.BufferSize, constants.MaxDatagramSize+1)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}
