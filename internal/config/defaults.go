package config

const (
	defaultConfigPath       = "~/.config/coursetrack/config.toml"
	defaultLogDir           = "~/.local/share/coursetrack/logs"
	defaultMaxDepth         = 20
	defaultFFprobeBinary    = "ffprobe"
	defaultProbeConcurrency = 4
	defaultProbeTimeout     = 15
	defaultFuzzyThreshold   = 0.75
	defaultDebounceMillis   = 2000
	defaultMaxSaveAttempts  = 3
	defaultBackend          = BackendJSON
	defaultMetadataDir      = ".coursetrack"
	defaultBackupRetention  = 10
	defaultSettleMillis     = 3000
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Repository backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultExtensions lists the playable file extensions recognized out of the box.
func DefaultExtensions() []string {
	return []string{"mp4", "mkv", "avi", "mov", "webm", "flv"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Scanner: Scanner{
			AllowedExtensions:   DefaultExtensions(),
			MaxDepth:            defaultMaxDepth,
			FFprobeBinary:       defaultFFprobeBinary,
			ProbeConcurrency:    defaultProbeConcurrency,
			ProbeTimeoutSeconds: defaultProbeTimeout,
		},
		Reconcile: Reconcile{
			FuzzyThreshold: defaultFuzzyThreshold,
		},
		Progress: Progress{
			DebounceMillis:  defaultDebounceMillis,
			MaxSaveAttempts: defaultMaxSaveAttempts,
		},
		Repository: Repository{
			Backend:         defaultBackend,
			MetadataDir:     defaultMetadataDir,
			BackupRetention: defaultBackupRetention,
			CompressBackups: true,
		},
		Watch: Watch{
			SettleMillis: defaultSettleMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
