// Package config loads service configuration with Viper.
//
// Values come from an optional config.yml, an optional .env file, and the
// process environment, in increasing order of precedence. Environment
// variables are bound to nested keys by splitting on underscores, so
// STREAM_DROP_THRESHOLD populates stream.drop_threshold.
package config
