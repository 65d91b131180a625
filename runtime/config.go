package runtime

// Config bounds the resources a single invocation may use.
type Config struct {
	// Fuel is the number of instructions an invocation may execute.
	// Zero means unlimited.
	Fuel uint64

	// MaxCallDepth bounds the activation stack.
	MaxCallDepth int

	// MaxMemoryPages bounds linear memory growth, in 64 KiB pages.
	MaxMemoryPages uint32

	// TraceInstructions logs every executed instruction at debug level.
	TraceInstructions bool
}

// DefaultConfig returns the configuration used by NewInstance.
func DefaultConfig() Config {
	return Config{
		MaxCallDepth:   1024,
		MaxMemoryPages: 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.MaxMemoryPages == 0 {
		c.MaxMemoryPages = d.MaxMemoryPages
	}
	return c
}
