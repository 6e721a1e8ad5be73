package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"loan-scorer/internal/common"
)

type Settings struct {
	DataPath           string
	TrainingData       string
	ListenAddr         string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ClassifierKind     string
	RemoteModelURL     string
	RemoteModelTimeout time.Duration
	DecisionThreshold  float64
	TrainIterations    int
	TrainL2            float64
	LogLevel           string
	LogFormat          string
}

type ConfigFile struct {
	Server struct {
		ListenAddr   string `yaml:"listenAddr"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	Model struct {
		DataPath          string  `yaml:"dataPath"`
		Classifier        string  `yaml:"classifier"`
		RemoteURL         string  `yaml:"remoteURL"`
		RemoteTimeout     string  `yaml:"remoteTimeout"`
		DecisionThreshold float64 `yaml:"decisionThreshold"`
	} `yaml:"model"`

	Training struct {
		Data       string  `yaml:"data"`
		Iterations int     `yaml:"iterations"`
		L2         float64 `yaml:"l2"`
	} `yaml:"training"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

const (
	defaultReadTimeout   = 10 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultRemoteTimeout = 5 * time.Second
)

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		DataPath:           getEnvOrDefault(common.EnvDataPath, orDefault(config.Model.DataPath, common.DefaultDataPath)),
		TrainingData:       getEnvOrDefault(common.EnvTrainingData, orDefault(config.Training.Data, common.DefaultTrainingData)),
		ListenAddr:         getEnvOrDefault(common.EnvListenAddr, orDefault(config.Server.ListenAddr, common.DefaultListenAddr)),
		ReadTimeout:        getDurationOrDefault(common.EnvReadTimeout, parseDuration(config.Server.ReadTimeout, defaultReadTimeout)),
		WriteTimeout:       getDurationOrDefault(common.EnvWriteTimeout, parseDuration(config.Server.WriteTimeout, defaultWriteTimeout)),
		ClassifierKind:     getEnvOrDefault(common.EnvClassifierKind, orDefault(config.Model.Classifier, common.DefaultClassifierKind)),
		RemoteModelURL:     getEnvOrDefault(common.EnvRemoteModelURL, config.Model.RemoteURL),
		RemoteModelTimeout: getDurationOrDefault(common.EnvRemoteModelTimeout, parseDuration(config.Model.RemoteTimeout, defaultRemoteTimeout)),
		DecisionThreshold:  getFloatFromEnvOrConfig(common.EnvDecisionThreshold, config.Model.DecisionThreshold, common.DefaultDecisionThreshold),
		TrainIterations:    getIntFromEnvOrConfig(common.EnvTrainIterations, config.Training.Iterations, common.DefaultTrainIterations),
		TrainL2:            getFloatFromEnvOrConfig(common.EnvTrainL2, config.Training.L2, common.DefaultTrainL2),
		LogLevel:           getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:          getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:           getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		TrainingData:       getEnvOrDefault(common.EnvTrainingData, common.DefaultTrainingData),
		ListenAddr:         getEnvOrDefault(common.EnvListenAddr, common.DefaultListenAddr),
		ReadTimeout:        getDurationOrDefault(common.EnvReadTimeout, defaultReadTimeout),
		WriteTimeout:       getDurationOrDefault(common.EnvWriteTimeout, defaultWriteTimeout),
		ClassifierKind:     getEnvOrDefault(common.EnvClassifierKind, common.DefaultClassifierKind),
		RemoteModelURL:     os.Getenv(common.EnvRemoteModelURL), // optional
		RemoteModelTimeout: getDurationOrDefault(common.EnvRemoteModelTimeout, defaultRemoteTimeout),
		DecisionThreshold:  getFloatOrDefault(common.EnvDecisionThreshold, common.DefaultDecisionThreshold),
		TrainIterations:    getIntOrDefault(common.EnvTrainIterations, common.DefaultTrainIterations),
		TrainL2:            getFloatOrDefault(common.EnvTrainL2, common.DefaultTrainL2),
		LogLevel:           getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:          getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Level returns the configured zerolog level.
func (s Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func parseDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate paths and addresses
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	// Validate time durations
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}

	// Validate classifier
	switch settings.ClassifierKind {
	case common.ClassifierLogistic:
	case common.ClassifierRemote:
		if settings.RemoteModelURL == "" {
			return fmt.Errorf("remote classifier requires %s", common.EnvRemoteModelURL)
		}
		if settings.RemoteModelTimeout < 100*time.Millisecond || settings.RemoteModelTimeout > time.Minute {
			return fmt.Errorf("remote model timeout must be between 100ms and 1m, got %v", settings.RemoteModelTimeout)
		}
	default:
		return fmt.Errorf("classifier must be %q or %q, got %q", common.ClassifierLogistic, common.ClassifierRemote, settings.ClassifierKind)
	}
	if settings.DecisionThreshold <= 0 || settings.DecisionThreshold >= 1 {
		return fmt.Errorf("decision threshold must be between 0 and 1, got %f", settings.DecisionThreshold)
	}

	// Validate training parameters
	if settings.TrainIterations <= 0 || settings.TrainIterations > 1000000 {
		return fmt.Errorf("training iterations must be between 1 and 1000000, got %d", settings.TrainIterations)
	}
	if settings.TrainL2 < 0 || settings.TrainL2 > 1 {
		return fmt.Errorf("L2 penalty must be between 0 and 1, got %f", settings.TrainL2)
	}

	// Validate logging
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	if settings.LogFormat != "console" && settings.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", settings.LogFormat)
	}

	return nil
}
