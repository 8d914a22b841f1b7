// Package config loads and saves the gfhanger YAML configuration.
//
// # File Location
//
// The configuration file is stored in an OS-specific location:
//   - Linux: $XDG_CONFIG_HOME/gfhanger/config.yaml or ~/.config/gfhanger/config.yaml
//   - macOS: ~/.config/gfhanger/config.yaml
//   - Windows: %LOCALAPPDATA%\gfhanger\config.yaml
//
// # File Format
//
//	version: 1
//	gateway:
//	  host: main.ortron.cn
//	  port: 13015
//	  max_retries: 3
//	  login_timeout: 10s
//	credentials:
//	  mobile: "13800000000"
//	  password: ${GFHANGER_PASSWORD}
//	  client_id: gfhanger
//	mqtt:
//	  broker: tcp://localhost:1883
//	  topic_prefix: gfhanger
//	metrics:
//	  addr: ":9108"
//	log:
//	  level: info
//
// ${VAR} references in gateway.host, credentials and the mqtt broker
// settings are expanded after parsing. A bare $ is kept as written, so
// passwords containing $ need no escaping. Durations use Go duration
// syntax. Unset fields take the defaults from Default.
//
// # Atomic Writes
//
// Save writes to a temporary file and renames it into place, so a crash
// never leaves a truncated config behind.
package config
