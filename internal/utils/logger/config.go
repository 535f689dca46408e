// internal/utils/logger/config.go
package logger

type Config struct {
	LogFile     string
	MaxSize     int  // megabytes
	MaxAge      int  // days
	MaxBackups  int
	Compress    bool
	Development bool
}

// DefaultConfig returns rotation settings suitable for a long-running broadcaster.
func DefaultConfig() *Config {
	return &Config{
		LogFile:    "gateway-broadcaster.log",
		MaxSize:    50,
		MaxAge:     14,
		MaxBackups: 5,
		Compress:   true,
	}
}
