package log

// Config configures the process logger.
type Config struct {
	Level string `mapstructure:"level"`
	// Format is one of pattern, text or json.
	Format  string `mapstructure:"format"`
	Pattern string `mapstructure:"pattern"`
	Time    string `mapstructure:"time"`
	// Output is stderr or stdout. Decoded frames go to stdout, so logs
	// default to stderr.
	Output string           `mapstructure:"output"`
	Caller bool             `mapstructure:"caller"`
	File   *FileAppenderOpt `mapstructure:"file"`
}

const (
	DefaultPattern = "%time [%level] %caller: %msg %field"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// DefaultConfig logs at info level to stderr using DefaultPattern.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "pattern",
		Pattern: DefaultPattern,
		Time:    DefaultTime,
		Output:  "stderr",
	}
}
