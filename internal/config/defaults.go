package config

const (
	defaultAuthMode              = AuthModeBasic
	defaultRequestTimeout        = 60
	defaultDiscoveryStatus       = "On Hold"
	defaultQueueUpdateInterval   = 60
	defaultWorkflowStartInterval = 10
	defaultIgniters              = 1
	defaultQueueMaxSize          = 1000
	defaultLogDir                = "~/.local/share/falcon/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Engine: Engine{
			AuthMode:       defaultAuthMode,
			RequestTimeout: defaultRequestTimeout,
		},
		Discovery: Discovery{
			Status:              defaultDiscoveryStatus,
			QueueUpdateInterval: defaultQueueUpdateInterval,
		},
		Dispatch: Dispatch{
			Igniters:              defaultIgniters,
			WorkflowStartInterval: defaultWorkflowStartInterval,
			QueueMaxSize:          defaultQueueMaxSize,
		},
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
