package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   string         `yaml:"listen"`
	Settings SettingsConfig `yaml:"settings"`
	// Custom content types that are publicly queryable.
	PublicTypes []string `yaml:"publicTypes"`
	// Bearer tokens allowed to change settings.
	AdminTokens []string `yaml:"adminTokens"`
	// Answer matching conditional requests with 304.
	ConditionalRequests bool   `yaml:"conditionalRequests"`
	Posts               []Post `yaml:"posts"`
}

type SettingsConfig struct {
	// SQLite file name, or "memory".
	DB string `yaml:"db"`
	// Redis address. Takes precedence over DB if set.
	Redis   string `yaml:"redis"`
	RedisDB int    `yaml:"redisDB"`
	// "network" or "site:<id>".
	Scope string        `yaml:"scope"`
	TTL   time.Duration `yaml:"ttl"`
}

type Post struct {
	ID       int64     `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Body     string    `yaml:"body"`
	GUID     string    `yaml:"guid"`
	Created  time.Time `yaml:"created"`
	Modified time.Time `yaml:"modified"`
	Password string    `yaml:"password"`
	Comments []Comment `yaml:"comments"`
}

type Comment struct {
	Author   string    `yaml:"author"`
	Date     time.Time `yaml:"date"`
	Approved bool      `yaml:"approved"`
}

func defaultConfig() Config {
	return Config{
		Listen: ":8080",
		Settings: SettingsConfig{
			DB:    "settings.db",
			Scope: "network",
			TTL:   30 * time.Second,
		},
	}
}

func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, err
	}
	return config, config.validate()
}

func (c Config) validate() error {
	seen := make(map[int64]bool, len(c.Posts))
	for _, p := range c.Posts {
		if p.ID <= 0 {
			return fmt.Errorf("post %q: id must be positive", p.Title)
		}
		if seen[p.ID] {
			return fmt.Errorf("post %d: duplicate id", p.ID)
		}
		seen[p.ID] = true
		if p.Type == "" {
			return fmt.Errorf("post %d: missing type", p.ID)
		}
	}
	return nil
}
