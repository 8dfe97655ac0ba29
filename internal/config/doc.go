// Package config provides the formrelay configuration file.
//
// The file controls which forms are registered (selector), where the
// loading/success/error regions live, the busy label swapped into the submit
// button, the auto-hide delays and the relay server address.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/formrelay/config.yaml or $HOME/.config/formrelay/config.yaml
//   - macOS: $HOME/.config/formrelay/config.yaml
//   - Windows: %LOCALAPPDATA%\formrelay\config.yaml
//
// A missing file is not an error: Load returns Default(). Partial files are
// completed with defaults.
//
// # Example
//
//	version: 1
//	selector:
//	  form_class: php-email-form
//	  provider_domain: formspree.io
//	timing:
//	  success_hide: 5s
//	  error_hide: 8s
package config
