package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults mirror the markup conventions of the contact-form templates the
// relay was built for.
const (
	DefaultFormClass      = "php-email-form"
	DefaultProviderDomain = "formspree.io"
	DefaultLoadingClass   = "loading"
	DefaultSuccessClass   = "sent-message"
	DefaultErrorClass     = "error-message"
	DefaultBusyLabel      = `<i class="bi bi-hourglass-split me-2"></i>Sending...`
	DefaultSuccessHide    = 5 * time.Second
	DefaultErrorHide      = 8 * time.Second
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8080
	DefaultServiceName    = "formrelay"
)

// Config represents the entire configuration file.
type Config struct {
	Version  int            `yaml:"version"`
	LogLevel string         `yaml:"log_level,omitempty"`
	Selector SelectorConfig `yaml:"selector"`
	Regions  RegionConfig   `yaml:"regions"`
	Labels   LabelConfig    `yaml:"labels"`
	Timing   TimingConfig   `yaml:"timing"`
	Server   ServerConfig   `yaml:"server"`
}

// SelectorConfig decides which forms get registered.
type SelectorConfig struct {
	FormClass      string `yaml:"form_class"`      // CSS class marking an email-style form
	ProviderDomain string `yaml:"provider_domain"` // substring the action URL must contain
}

// RegionConfig names the classes of the optional child regions.
type RegionConfig struct {
	Loading string `yaml:"loading"`
	Success string `yaml:"success"`
	Error   string `yaml:"error"`
}

// LabelConfig holds markup swapped into the submit button.
type LabelConfig struct {
	Busy string `yaml:"busy"`
}

// TimingConfig holds the auto-hide delays.
type TimingConfig struct {
	SuccessHide time.Duration `yaml:"success_hide"`
	ErrorHide   time.Duration `yaml:"error_hide"`
}

// ServerConfig configures `formrelay serve`.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Advertise   bool   `yaml:"advertise"`
	ServiceName string `yaml:"service_name,omitempty"`
	TLSCert     string `yaml:"tls_cert,omitempty"` // serve HTTPS when both cert and key are set
	TLSKey      string `yaml:"tls_key,omitempty"`
}

// Default returns a Config with every field populated.
func Default() *Config {
	return &Config{
		Version: 1,
		Selector: SelectorConfig{
			FormClass:      DefaultFormClass,
			ProviderDomain: DefaultProviderDomain,
		},
		Regions: RegionConfig{
			Loading: DefaultLoadingClass,
			Success: DefaultSuccessClass,
			Error:   DefaultErrorClass,
		},
		Labels: LabelConfig{Busy: DefaultBusyLabel},
		Timing: TimingConfig{
			SuccessHide: DefaultSuccessHide,
			ErrorHide:   DefaultErrorHide,
		},
		Server: ServerConfig{
			Host:        DefaultHost,
			Port:        DefaultPort,
			ServiceName: DefaultServiceName,
		},
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Selector.FormClass == "" {
		c.Selector.FormClass = d.Selector.FormClass
	}
	if c.Selector.ProviderDomain == "" {
		c.Selector.ProviderDomain = d.Selector.ProviderDomain
	}
	if c.Regions.Loading == "" {
		c.Regions.Loading = d.Regions.Loading
	}
	if c.Regions.Success == "" {
		c.Regions.Success = d.Regions.Success
	}
	if c.Regions.Error == "" {
		c.Regions.Error = d.Regions.Error
	}
	if c.Labels.Busy == "" {
		c.Labels.Busy = d.Labels.Busy
	}
	if c.Timing.SuccessHide == 0 {
		c.Timing.SuccessHide = d.Timing.SuccessHide
	}
	if c.Timing.ErrorHide == 0 {
		c.Timing.ErrorHide = d.Timing.ErrorHide
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ServiceName == "" {
		c.Server.ServiceName = d.Server.ServiceName
	}
}

// Validate checks values that would make the relay misbehave.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if strings.ContainsAny(c.Selector.FormClass, " \t\n") {
		return fmt.Errorf("selector.form_class must be a single class name, got %q", c.Selector.FormClass)
	}
	if c.Timing.SuccessHide < 0 || c.Timing.ErrorHide < 0 {
		return fmt.Errorf("timing delays must not be negative")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}
