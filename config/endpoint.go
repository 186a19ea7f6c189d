package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// IndexPortOffset is added to the index server port to obtain the fallback
// coordination port.
const IndexPortOffset = 1000

// ErrNoEndpoint is returned when neither the coordination endpoint nor the
// index server fallback is configured.
var ErrNoEndpoint = errors.New("no coordination endpoint: set coordination.host and coordination.port, or index_server.host and index_server.port")

// CoordinationEndpoint returns the configured coordination host and port.
// When either is unset it falls back to the index server host with the index
// server port plus IndexPortOffset.
func (c *Config) CoordinationEndpoint() (string, int, error) {
	if c.Coordination.Host != "" && c.Coordination.Port > 0 {
		return c.Coordination.Host, c.Coordination.Port, nil
	}
	if c.IndexServer.Host == "" || c.IndexServer.Port <= 0 {
		return "", 0, ErrNoEndpoint
	}
	port := c.IndexServer.Port + IndexPortOffset
	if port > 65535 {
		return "", 0, fmt.Errorf("index_server.port %d leaves no room for the coordination port offset", c.IndexServer.Port)
	}
	return c.IndexServer.Host, port, nil
}

// CoordinationAddress returns CoordinationEndpoint formatted as host:port.
func (c *Config) CoordinationAddress() (string, error) {
	host, port, err := c.CoordinationEndpoint()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
