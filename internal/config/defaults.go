package config

const (
	defaultDataDir    = "~/.local/share/reelforge/data"
	defaultStagingDir = "~/.local/share/reelforge/staging"
	defaultOutputDir  = "~/.local/share/reelforge/renders"
	defaultLogDir     = "~/.local/share/reelforge/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultVideoCodec    = "libx264"
	defaultPixelFormat   = "yuv420p"
	defaultAudioCodec    = "aac"

	defaultProviderTimeoutSeconds = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Render: Render{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
			PixelFormat:   defaultPixelFormat,
			AudioCodec:    defaultAudioCodec,
		},
		Provider: Provider{
			TimeoutSeconds: defaultProviderTimeoutSeconds,
		},
	}
}
