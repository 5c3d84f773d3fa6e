package core

import (
	"fmt"
	"strings"
	"time"
)

type UpstreamConfig struct {
	BaseURL              string        `koanf:"base_url" mapstructure:"base_url"`
	ListPageSize         int           `koanf:"list_page_size" mapstructure:"list_page_size"`
	RequestTimeout       time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	MaxResponseBodyBytes int64         `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Provider    string         `koanf:"provider" mapstructure:"provider"`
	Upstream    UpstreamConfig `koanf:"upstream" mapstructure:"upstream"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "gister",
		Provider:    string(ProviderGitHub),
		Upstream: UpstreamConfig{
			BaseURL:              "https://api.github.com",
			ListPageSize:         50,
			RequestTimeout:       30 * time.Second,
			MaxResponseBodyBytes: 10 << 20,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Provider) == "" {
		return fmt.Errorf("core: provider is required")
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return fmt.Errorf("core: upstream base_url is required")
	}
	if c.Upstream.ListPageSize < 1 {
		return fmt.Errorf("core: upstream list_page_size must be >= 1")
	}
	return nil
}
