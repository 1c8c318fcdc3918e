// Package confloader loads configuration with koanf.
//
// Sources, lowest to highest priority:
//
//  1. Defaults already present in the target struct
//  2. YAML configuration file
//  3. Environment variables (PAIRMESH_ prefix)
//  4. Maps supplied by the caller, typically command-line flags
//
// Watcher reports changes to a configuration file so selected settings,
// such as the log level, can be applied without a restart.
package confloader
