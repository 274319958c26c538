// Package config handles configuration loading for mediline.
//
// Both binaries read the same YAML file, found at (in priority order):
//
//  1. The MEDILINE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/mediline/mediline.yaml
//  3. ~/.config/mediline/mediline.yaml
//
// Values support ${VAR} environment variable expansion, applied to the
// raw file before parsing. Duration fields are written as Go duration
// strings ("60s", "2m") and parsed during Load.
//
// A full config:
//
//	server:
//	  http_addr: "localhost:8080"
//
//	gemini:
//	  api_key: "${GOOGLE_API_KEY}"
//	  model: "gemini-2.0-flash"
//
//	database:
//	  path: "~/.local/share/mediline/mediline.db"
//
//	auth:
//	  jwt_secret: ""    # empty disables bearer auth
//
//	agents:
//	  catalog: ""       # optional TOML overrides
//
//	client:
//	  base_url: "http://localhost:8080"
//	  token: ""
//	  timeout: "60s"
//
//	attachments:
//	  max_bytes: 5242880
//	  allowed_types: ["image/jpeg", "image/png"]
//
//	voice:
//	  command: ""       # host speech-to-text command
//	  args: []
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// The gateway validates with ValidateServer, the terminal client with
// ValidateClient; each checks only the sections it uses.
package config
