// Package config loads runtime configuration for the SoulTalk CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the auth API
//	-s string   directory holding the local session database
//	-t int      request timeout (seconds)
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// Intervals accept Go duration strings or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "state_dir": ".soultalk",
//	  "request_timeout": "10s",
//	  "online_check_interval": "5s"
//	}
package config
