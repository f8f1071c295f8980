package main

import (
	"time"

	rconfig "github.com/horgh/config"
	"github.com/pkg/errors"
)

// Config holds the server's ambient, non-protocol configuration: where to
// listen, how to introduce itself, and the idle/liveness timers for §4.7's
// sweep. None of this is part of the protocol core (§1 scope); it is the
// ambient configuration layer every daemon in this corpus carries.
type Config struct {
	ListenHost string
	ListenPort string

	ServerName  string
	Version     string
	CreatedDate string
	MOTD        string

	// MaxNickLength bounds how long a requested nick may be before we reject
	// it outright (distinct from nick uniqueness, which is the registry's
	// job).
	MaxNickLength int64

	// PingTime is how long a session (registered or still in Login) may be
	// idle before we send it a server-initiated PING (§4.7). It is also the
	// sweep's tick interval.
	PingTime time.Duration

	// DeadTime is how long a session may be idle before we give up on it and
	// tear it down with a ping-timeout QUIT reason.
	DeadTime time.Duration

	// IOTimeout bounds a single read or write on the underlying socket.
	IOTimeout time.Duration
}

// defaultConfig matches spec's CLI surface: a listener on 127.0.0.1:6991
// with no config file, out of the box.
func defaultConfig() Config {
	return Config{
		ListenHost:    "127.0.0.1",
		ListenPort:    "6991",
		ServerName:    "relayd",
		Version:       "relayd-0.1",
		CreatedDate:   "today",
		MOTD:          "Welcome.",
		MaxNickLength: 9,
		PingTime:      2 * time.Minute,
		DeadTime:      5 * time.Minute,
		IOTimeout:     10 * time.Minute,
	}
}

// fileConfig is the subset of Config loadable from an on-disk config file,
// in the teacher's "key = value" mini-language (github.com/horgh/config).
// Durations and the listen address are deliberately left to flags/defaults:
// the file only carries the identity/informational fields an operator is
// likely to want to override without touching the command line.
type fileConfig struct {
	ServerName    string
	Version       string
	CreatedDate   string
	MOTD          string
	MaxNickLength int64
}

// loadConfigFile reads path with the horgh/config mini-language and applies
// its fields on top of base. The file must define every fileConfig field;
// a missing key is an error, and all five fields replace base's values.
func loadConfigFile(path string, base Config) (Config, error) {
	raw, err := rconfig.ReadStringMap(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read configuration file")
	}

	var fc fileConfig
	if err := rconfig.PopulateStruct(&fc, raw); err != nil {
		return Config{}, errors.Wrap(err, "unable to parse configuration file")
	}

	base.ServerName = fc.ServerName
	base.Version = fc.Version
	base.CreatedDate = fc.CreatedDate
	base.MOTD = fc.MOTD
	base.MaxNickLength = fc.MaxNickLength
	return base, nil
}
