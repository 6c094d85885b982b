// Package config loads pipeline and collector configuration.
//
// Configuration comes from BEACON_ environment variables, optionally seeded
// from a YAML file. Environment variables always win over file values.
package config
