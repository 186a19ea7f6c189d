package zookeeper

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultSessionTimeout = 30 * time.Second
	DefaultConnectTimeout = 15 * time.Second
)

// Config holds the settings decoded from the store.zookeeper configuration section.
type Config struct {
	// Servers lists "host:port" addresses of the ensemble.
	Servers []string `mapstructure:"servers" yaml:"servers" validate:"required,min=1,dive,hostname_port"`

	// SessionTimeout is the ZooKeeper session timeout; ephemeral lock nodes
	// disappear this long after the client is lost.
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	// ConnectTimeout bounds the wait for the first session.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// ServerAddress formats a host and port as a server entry.
func ServerAddress(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (c *Config) applyDefaults() {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("zookeeper store: at least one server is required")
	}
	return nil
}
