package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	Port         string
	Environment  string
	APIAccessKey string
	PortalsDir   string

	// Ingestion configuration
	FetchTimeout int
	BatchSize    int
	WriteDelayMs int

	// Scheduler configuration
	TriggerURL       string
	Schedule         string
	Timezone         string
	TriggerTimeout   int
	RunOnStart       bool
	SchedulerEnabled bool

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}

// IsProduction reports whether the service runs in production mode, where
// the crawler trigger endpoint requires authentication.
func (c *Cfg) IsProduction() bool {
	return c.Environment == "production"
}
