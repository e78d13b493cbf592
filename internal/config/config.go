package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration, loaded once at startup.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Queue struct {
		Concurrency int           `mapstructure:"concurrency"`
		IntervalCap int           `mapstructure:"interval_cap"`
		Interval    time.Duration `mapstructure:"interval"`
		TaskTimeout time.Duration `mapstructure:"task_timeout"`
	} `mapstructure:"queue"`

	Jobs struct {
		Retention time.Duration `mapstructure:"retention"`
	} `mapstructure:"jobs"`

	YtDlp struct {
		Binary      string `mapstructure:"binary"`
		CookiesFile string `mapstructure:"cookies_file"`
		TempDir     string `mapstructure:"temp_dir"`
		UserAgent   string `mapstructure:"user_agent"`
	} `mapstructure:"ytdlp"`

	AI struct {
		Enabled        bool          `mapstructure:"enabled"`
		Provider       string        `mapstructure:"provider"` // "openrouter" or "gemini"
		BaseURL        string        `mapstructure:"base_url"`
		APIKey         string        `mapstructure:"api_key"`
		GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
		PrimaryModel   string        `mapstructure:"primary_model"`
		SecondaryModel string        `mapstructure:"secondary_model"`
		MaxTokens      int           `mapstructure:"max_tokens"`
		RetryAttempts  int           `mapstructure:"retry_attempts"`
		RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	} `mapstructure:"ai"`

	STT struct {
		APIKey     string `mapstructure:"api_key"`
		Model      string `mapstructure:"model"`
		MaxAudioMB int64  `mapstructure:"max_audio_mb"`
	} `mapstructure:"stt"`

	CaptionFeed struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"captionfeed"`
}

// LoadConfig reads config.yaml (optional) and environment variables.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	// Bind well-known API key env vars so no prefix/naming convention is
	// required to set them.
	viper.BindEnv("ai.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("ai.gemini_api_key", "GEMINI_API_KEY")
	viper.BindEnv("stt.api_key", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; env vars and defaults carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", "0.0.0.0")
	viper.SetDefault("server.port", "3500")

	// Queue bounds mirror the admission policy the pipeline was tuned
	// for: 4 concurrent jobs, 5 admissions per rolling second, and a
	// generous outer timeout for slow downloads.
	viper.SetDefault("queue.concurrency", 4)
	viper.SetDefault("queue.interval_cap", 5)
	viper.SetDefault("queue.interval", time.Second)
	viper.SetDefault("queue.task_timeout", 30*time.Minute)

	viper.SetDefault("jobs.retention", time.Hour)

	viper.SetDefault("ytdlp.binary", "yt-dlp")
	viper.SetDefault("ytdlp.cookies_file", "cookies.txt")
	viper.SetDefault("ytdlp.temp_dir", "temp")
	viper.SetDefault("ytdlp.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")

	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "openrouter")
	viper.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("ai.primary_model", "deepseek/deepseek-chat")
	viper.SetDefault("ai.secondary_model", "qwen/qwen-2.5-72b-instruct")
	viper.SetDefault("ai.max_tokens", 16384)
	viper.SetDefault("ai.retry_attempts", 3)
	viper.SetDefault("ai.retry_base_delay", time.Second)

	viper.SetDefault("stt.model", "whisper-1")
	viper.SetDefault("stt.max_audio_mb", 25)

	viper.SetDefault("captionfeed.base_url", "https://www.youtube.com")
}
