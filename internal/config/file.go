package config

import (
	"fmt"
	"time"
)

// fileConfig mirrors Config for TOML files. Pointers distinguish absent keys
// from zero values; durations are Go duration strings such as "30s".
type fileConfig struct {
	Addr          *string `toml:"addr"`
	DatabaseURL   *string `toml:"database_url"`
	CORSOrigin    *string `toml:"cors_origin"`
	PublicBaseURL *string `toml:"public_base_url"`

	Log struct {
		Level *string `toml:"level"`
		File  *string `toml:"file"`
	} `toml:"log"`

	Chrome struct {
		Path          *string `toml:"path"`
		MaxTabs       *int    `toml:"max_tabs"`
		RenderTimeout *string `toml:"render_timeout"`
	} `toml:"chrome"`

	Download struct {
		Dir *string `toml:"dir"`
	} `toml:"download"`

	Print struct {
		Command      *string `toml:"command"`
		Destination  *string `toml:"destination"`
		Attempts     *int    `toml:"attempts"`
		Delay        *string `toml:"delay"`
		ReleaseDelay *string `toml:"release_delay"`
	} `toml:"print"`

	Share struct {
		Endpoint  *string `toml:"endpoint"`
		AccessKey *string `toml:"access_key"`
		SecretKey *string `toml:"secret_key"`
		Bucket    *string `toml:"bucket"`
		UseSSL    *bool   `toml:"use_ssl"`
		TTL       *string `toml:"ttl"`
		RedisURL  *string `toml:"redis_url"`
	} `toml:"share"`
}

func (f fileConfig) apply(cfg *Config) error {
	setString(&cfg.Addr, f.Addr)
	setString(&cfg.DatabaseURL, f.DatabaseURL)
	setString(&cfg.CORSOrigin, f.CORSOrigin)
	setString(&cfg.PublicBaseURL, f.PublicBaseURL)
	setString(&cfg.LogLevel, f.Log.Level)
	setString(&cfg.LogFile, f.Log.File)
	setString(&cfg.ChromePath, f.Chrome.Path)
	setInt(&cfg.MaxTabs, f.Chrome.MaxTabs)
	setString(&cfg.DownloadDir, f.Download.Dir)
	setString(&cfg.PrintCommand, f.Print.Command)
	setString(&cfg.PrintDestination, f.Print.Destination)
	setInt(&cfg.PrintAttempts, f.Print.Attempts)
	setString(&cfg.MinioEndpoint, f.Share.Endpoint)
	setString(&cfg.MinioAccessKey, f.Share.AccessKey)
	setString(&cfg.MinioSecretKey, f.Share.SecretKey)
	setString(&cfg.MinioBucket, f.Share.Bucket)
	if f.Share.UseSSL != nil {
		cfg.MinioUseSSL = *f.Share.UseSSL
	}
	setString(&cfg.RedisURL, f.Share.RedisURL)

	durations := []struct {
		key string
		dst *time.Duration
		src *string
	}{
		{"chrome.render_timeout", &cfg.RenderTimeout, f.Chrome.RenderTimeout},
		{"print.delay", &cfg.PrintDelay, f.Print.Delay},
		{"print.release_delay", &cfg.PrintReleaseDelay, f.Print.ReleaseDelay},
		{"share.ttl", &cfg.ShareTTL, f.Share.TTL},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
