// Package config defines the runtime configuration of ec2backup.
//
// A Config is assembled once at startup, in increasing order of precedence:
//
//  1. built-in defaults (ApplyDefaults)
//  2. an optional YAML file (see internal/loader)
//  3. BACKUP_* and AWS_REGION environment variables (see internal/loader)
//  4. command-line flags that were explicitly set (ApplyFlags)
//
// The result is validated once and then passed by pointer to the components
// that need it. Nothing in this package reads process state lazily.
package config
