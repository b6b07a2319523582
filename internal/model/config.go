package model

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BrokerConfig represents the normalized MQTT broker connection settings.
type BrokerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	KeepAliveSec int    `yaml:"keep_alive_sec"`
	QoS          byte   `yaml:"qos"`
}

func (c BrokerConfig) KeepAlive() uint16 {
	if c.KeepAliveSec <= 0 {
		return 60
	}
	if c.KeepAliveSec > 0xffff {
		return 0xffff
	}
	return uint16(c.KeepAliveSec)
}

func (c BrokerConfig) ConnectTimeout() time.Duration {
	return 10 * time.Second
}

// URL returns the broker address as an mqtt:// URL. A host that already
// carries a scheme or port keeps it.
func (c BrokerConfig) URL() (*url.URL, error) {
	raw := strings.TrimSpace(c.Host)
	if !strings.Contains(raw, "://") {
		raw = "mqtt://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Port() == "" && c.Port > 0 {
		parsed.Host = net.JoinHostPort(parsed.Hostname(), strconv.Itoa(c.Port))
	}
	parsed.Path = ""
	return parsed, nil
}
