package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the externally supplied runtime surface of the ingestion core:
// polling cadence, evidence concurrency, the notify-on field set and the
// credentials/base URLs of the feed and the search source.
type Config struct {
	PollInterval        time.Duration
	FeedBaseURL         string
	FeedAPIKey          string
	FeedRetryWindow     time.Duration
	SearchToken         string
	EvidenceConcurrency int
	// up to this many proof-of-concept candidates are kept per vulnerability
	EvidenceMaxCandidates int
	NotifyOn              []string
	SlackToken            string
	MetricsAddress        string
}

// Load binds the configuration from environment variables (prefixed
// VULNFEED_) and an optional config file in the working directory.
func Load(cfgFile string) (Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("vulnfeed")
	}

	v.SetEnvPrefix("VULNFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll_interval", "2h")
	v.SetDefault("feed_base_url", "https://services.nvd.nist.gov/rest/json/cves/2.0")
	v.SetDefault("feed_retry_window", "10m")
	v.SetDefault("evidence_concurrency", 4)
	v.SetDefault("evidence_max_candidates", 10)
	v.SetDefault("notify_on", []string{"severity", "evidence"})
	v.SetDefault("metrics_address", ":9143")

	if err := v.ReadInConfig(); err != nil {
		// a missing config file is fine, the env surface is authoritative
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return Config{}, err
		}
	}

	return Config{
		PollInterval:          v.GetDuration("poll_interval"),
		FeedBaseURL:           v.GetString("feed_base_url"),
		FeedAPIKey:            v.GetString("feed_api_key"),
		FeedRetryWindow:       v.GetDuration("feed_retry_window"),
		SearchToken:           v.GetString("search_token"),
		EvidenceConcurrency:   v.GetInt("evidence_concurrency"),
		EvidenceMaxCandidates: v.GetInt("evidence_max_candidates"),
		NotifyOn:              v.GetStringSlice("notify_on"),
		SlackToken:            v.GetString("slack_token"),
		MetricsAddress:        v.GetString("metrics_address"),
	}, nil
}
