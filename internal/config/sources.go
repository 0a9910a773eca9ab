package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceSettings holds the per-provider search terms and feeds.
// They can be overridden with a YAML file (SOURCES_FILE).
type SourceSettings struct {
	ChineseFeeds       map[string]string `yaml:"chinese_feeds"`
	ChineseKeywords    []string          `yaml:"chinese_keywords"`
	ChineseMediaHours  int               `yaml:"chinese_media_hours"`
	Subreddits         []string          `yaml:"subreddits"`
	TwitterQueries     []string          `yaml:"twitter_queries"`
	CrunchbaseKeywords []string          `yaml:"crunchbase_keywords"`
}

// DefaultSourceSettings returns the built-in source settings
func DefaultSourceSettings() SourceSettings {
	return SourceSettings{
		ChineseFeeds: map[string]string{
			"36kr":   "https://36kr.com/feed",
			"huxiu":  "https://www.huxiu.com/rss/0.xml",
			"tiehan": "https://www.tmtpost.com/feed",
		},
		ChineseKeywords: []string{
			"AI", "人工智能", "融资", "创业", " startup",
			"A 轮", "B 轮", "天使轮", "种子轮",
			"SaaS", "大模型", "AIGC", "LLM",
		},
		ChineseMediaHours: 48,
		Subreddits:        []string{"entrepreneur", "SaaS", "indiehackers", "sideproject"},
		TwitterQueries: []string{
			"AI startup",
			"indie hacker",
			"SaaS founder",
			"build in public",
			"solopreneur",
		},
		CrunchbaseKeywords: []string{
			"Artificial Intelligence",
			"Machine Learning",
			"SaaS",
			"Enterprise Software",
			"FinTech",
		},
	}
}

// LoadSourceSettings reads a YAML file on top of the defaults.
// Keys missing from the file keep their default values.
func LoadSourceSettings(path string) (SourceSettings, error) {
	settings := DefaultSourceSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var override SourceSettings
	if err := yaml.Unmarshal(data, &override); err != nil {
		return settings, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if len(override.ChineseFeeds) > 0 {
		settings.ChineseFeeds = override.ChineseFeeds
	}
	if len(override.ChineseKeywords) > 0 {
		settings.ChineseKeywords = override.ChineseKeywords
	}
	if override.ChineseMediaHours > 0 {
		settings.ChineseMediaHours = override.ChineseMediaHours
	}
	if len(override.Subreddits) > 0 {
		settings.Subreddits = override.Subreddits
	}
	if len(override.TwitterQueries) > 0 {
		settings.TwitterQueries = override.TwitterQueries
	}
	if len(override.CrunchbaseKeywords) > 0 {
		settings.CrunchbaseKeywords = override.CrunchbaseKeywords
	}

	return settings, nil
}
