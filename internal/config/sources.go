package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"grainbids/pkg/contracts/domain"
)

// ManualFeedSource is the reserved source name for the fallback CSV feed.
const ManualFeedSource = "manual-feed"

// Source is one configured co-op page.
type Source struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
	// Browser forces the headless-browser fetch strategy for this source
	// even before the static fetch comes back empty.
	Browser bool `yaml:"browser"`
}

// Sources is the bid-side configuration: the ordered source list, the
// ordered processor rule list, default futures overrides, and the optional
// fallback feed URL. Order matters for rules (first match wins) and is kept
// exactly as written in the file.
type Sources struct {
	Sources []Source               `yaml:"sources" validate:"required,min=1,dive"`
	Rules   []domain.ProcessorRule `yaml:"rules" validate:"dive"`
	// Futures maps commodity names to default futures prices, as decimal
	// strings so cents survive YAML round-trips intact.
	Futures map[string]string `yaml:"futures"`
	// FallbackFeedURL is a CSV-shaped feed consulted only when every
	// source yields zero rows.
	FallbackFeedURL string `yaml:"fallback_feed_url" validate:"omitempty,url"`
}

var validate = validator.New()

// LoadSources reads and validates the sources file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources parses and validates sources YAML.
func ParseSources(data []byte) (*Sources, error) {
	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("sources validation failed: %w", err)
	}
	for name := range s.Futures {
		switch domain.Commodity(name) {
		case domain.CommodityCorn, domain.CommoditySoybeans, domain.CommodityOther:
		default:
			return nil, fmt.Errorf("unknown commodity %q in futures overrides", name)
		}
	}
	for _, src := range s.Sources {
		if src.Name == ManualFeedSource {
			return nil, fmt.Errorf("source name %q is reserved for the fallback feed", ManualFeedSource)
		}
	}
	if _, err := s.FuturesOverride(); err != nil {
		return nil, err
	}
	return &s, nil
}

// FuturesOverride converts the configured default futures prices into the
// domain override map.
func (s *Sources) FuturesOverride() (domain.FuturesOverride, error) {
	if len(s.Futures) == 0 {
		return nil, nil
	}
	override := make(domain.FuturesOverride, len(s.Futures))
	for name, price := range s.Futures {
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid futures price %q for %s: %w", price, name, err)
		}
		override[domain.Commodity(name)] = d
	}
	return override, nil
}
