package config

const (
	defaultBaseURL         = "http://127.0.0.1:8000/api"
	defaultRequestTimeout  = 30
	defaultLongCallTimeout = 300
	defaultDataDir         = "~/.local/share/tailor"
	defaultLogDir          = "~/.local/share/tailor/logs"
	defaultArtifactDir     = "~/.local/share/tailor/artifacts"
	defaultCaptureBinary   = "ffmpeg"
	defaultCaptureDevice   = "default"
	defaultSampleRate      = 16000
	defaultTranscribeModel = "gpt-4o-transcribe"
	defaultTranslateModel  = "whisper-1"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			BaseURL:         defaultBaseURL,
			RequestTimeout:  defaultRequestTimeout,
			LongCallTimeout: defaultLongCallTimeout,
		},
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			ArtifactDir: defaultArtifactDir,
		},
		Audio: Audio{
			CaptureBinary:   defaultCaptureBinary,
			CaptureDevice:   defaultCaptureDevice,
			SampleRate:      defaultSampleRate,
			TranscribeModel: defaultTranscribeModel,
			TranslateModel:  defaultTranslateModel,
			MonitorHotplug:  false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
