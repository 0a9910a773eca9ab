package sources

import (
	"strings"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/sirupsen/logrus"
)

// Names lists every source New knows how to build
var Names = []string{"hn", "ph", "reddit", "twitter", "crunchbase", "github_trending", "indiehackers", "chinese_media"}

// New builds the source for a configured name, or nil for an unknown name
func New(name string, cfg *config.Config) Source {
	settings := cfg.Sources

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hn":
		return NewHackerNewsSource()
	case "ph":
		return NewProductHuntSource(cfg.PHAccessToken)
	case "reddit":
		return NewRedditSource(settings.Subreddits)
	case "twitter":
		return NewTwitterSource(cfg.TwitterBearerToken, settings.TwitterQueries)
	case "crunchbase":
		return NewCrunchbaseSource(cfg.CrunchbaseAPIKey, settings.CrunchbaseKeywords)
	case "github_trending":
		return NewGitHubTrendingSource()
	case "indiehackers":
		return NewIndieHackersSource()
	case "chinese_media":
		return NewChineseMediaSource(settings.ChineseFeeds, settings.ChineseKeywords, settings.ChineseMediaHours)
	default:
		return nil
	}
}

// FromConfig returns the enabled sources in the configured order
func FromConfig(cfg *config.Config) []Source {
	var enabled []Source

	for _, name := range cfg.EnabledSources {
		source := New(name, cfg)
		if source == nil {
			logrus.Warnf("Unknown source %q - skipping", name)
			continue
		}
		if !source.IsEnabled() {
			logrus.Infof("Source %s is not configured - skipping", source.GetName())
			continue
		}
		enabled = append(enabled, source)
	}

	return enabled
}
