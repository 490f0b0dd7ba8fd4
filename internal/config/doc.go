// Package config loads and persists the per-device configuration file:
// the stable device identity, the local vault path, and tunables like
// the KDF iteration count.
//
// The device id is generated once on first run and never changes
// afterwards; sync provenance and conflict records depend on it being
// stable.
package config
