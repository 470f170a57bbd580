// Package config loads the client configuration from YAML.
//
// Load reads a file over the defaults and validates it. Durations are Go
// duration strings ("5s", "2h"). Secrets are never stored in the file:
// the access token is read from the environment variable named by
// upstream.token_env.
//
// Watch reloads the file on change. Only settings that can change at run
// time are applied by the caller: the current user and the log level.
package config
