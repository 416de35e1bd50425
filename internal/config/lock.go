package config

import "time"

// LockConfig defines the tunables of the seat lock engine.  Both
// values are externally configurable rather than hard-coded: the hold
// duration bounds how long a checkout can keep a seat off the market,
// and together with the reaper interval it bounds worst-case seat
// unavailability after an abandoned checkout.
type LockConfig struct {
	HoldDuration   time.Duration // default hold per acquire when the request names none
	ReaperInterval time.Duration // how often the reaper sweeps for expired holds
}

// LoadLockConfig reads lock engine settings from the environment,
// falling back to a 300 second hold and a 5 second sweep.
func LoadLockConfig() LockConfig {
	cfg := LockConfig{
		HoldDuration:   time.Duration(envInt("HOLD_SECONDS", 300)) * time.Second,
		ReaperInterval: envDur("REAPER_INTERVAL", 5*time.Second),
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = 300 * time.Second
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 5 * time.Second
	}
	return cfg
}
