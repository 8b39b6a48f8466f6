package config

const (
	defaultConfigPath                = "~/.config/lipsync/config.toml"
	defaultWorkDir                   = "~/.local/share/lipsync/temp"
	defaultResultsDir                = "~/.local/share/lipsync/results"
	defaultUploadDir                 = "~/.local/share/lipsync/uploads"
	defaultStateDir                  = "~/.local/share/lipsync/state"
	defaultLogDir                    = "~/.local/share/lipsync/logs"
	defaultAPIBind                   = "127.0.0.1:7860"
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultInferenceBinary           = "python3"
	defaultInferenceScript           = "inference.py"
	defaultInferenceWorkers          = 1
	defaultMaxConcurrentJobs         = 1
	defaultQueuePollInterval         = 2
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultStaleWorkspaceHours       = 72
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogMaxSizeMB              = 100
	defaultLogMaxBackups             = 10
	defaultLogMaxAgeDays             = 30
	defaultUITitle                   = "audio-based lip synchronization"
	defaultNtfyRequestTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			ResultsDir: defaultResultsDir,
			UploadDir:  defaultUploadDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Inference: Inference{
			Binary:  defaultInferenceBinary,
			Script:  defaultInferenceScript,
			Workers: defaultInferenceWorkers,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:   defaultMaxConcurrentJobs,
			QueuePollInterval:   defaultQueuePollInterval,
			HeartbeatInterval:   defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:    defaultWorkflowHeartbeatTimeout,
			StaleWorkspaceHours: defaultStaleWorkspaceHours,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
		UI: UI{
			Title: defaultUITitle,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyRequestTimeout,
			NotifyCompleted:       true,
			NotifyFailed:          true,
		},
	}
}
