package server

// Config is the listener configuration. All values come from flags or the
// environment; there is no config file.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
}

// DefaultConfig listens locally and accepts any origin (development mode).
func DefaultConfig() Config {
	return Config{ListenAddr: "localhost:8080"}
}
