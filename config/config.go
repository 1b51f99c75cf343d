package config

import "time"

// Config represents the complete Koto configuration
type Config struct {
	BaseDir string     `yaml:"-"` // Directory containing config file, for resolving relative paths
	Run     RunConfig  `yaml:"run"`
	Emit    EmitConfig `yaml:"emit"`
	Seed    string     `yaml:"seed"` // Path to a .yaml or .csv file bound before every run
	REPL    REPLConfig `yaml:"repl"`
}

// RunConfig holds evaluation settings
type RunConfig struct {
	Timeout  float64 `yaml:"timeout"`   // Seconds; 0 disables the limit
	MaxDepth int     `yaml:"max_depth"` // Nested call limit
	Stats    bool    `yaml:"stats"`     // Print counters after each run
}

// Budget returns the timeout as a duration; zero means no limit.
func (r RunConfig) Budget() time.Duration {
	return time.Duration(r.Timeout * float64(time.Second))
}

// EmitConfig holds translation settings
type EmitConfig struct {
	Dialect string `yaml:"dialect"` // js or py
	Indent  int    `yaml:"indent"`  // Base indentation level
}

// REPLConfig holds interactive session settings
type REPLConfig struct {
	History string `yaml:"history"` // History file; empty disables history
}

// Defaults returns a Config with sensible default values
func Defaults() *Config {
	return &Config{
		Run: RunConfig{
			Timeout:  30,
			MaxDepth: 10000,
		},
		Emit: EmitConfig{
			Dialect: "js",
		},
		REPL: REPLConfig{
			History: "~/.koto_history",
		},
	}
}
