package nvdbseg

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Configuration describes one segmentation or join job
type Configuration struct {
	API              APIConfiguration     `yaml:"api"`
	Base             SourceConfiguration  `yaml:"base"`
	Layers           []LayerConfiguration `yaml:"layers"`
	MinLength        float64              `yaml:"min_length"`
	SafetyFactor     float64              `yaml:"safety_factor"`
	OverlapTolerance float64              `yaml:"overlap_tolerance"`
	Join             JoinConfiguration    `yaml:"join"`
}

// APIConfiguration holds settings for the registry's read API
type APIConfiguration struct {
	BaseURL   string            `yaml:"base_url"`
	Client    string            `yaml:"client"`
	RateLimit float64           `yaml:"rate_limit"` // requests per second
	PageSize  int               `yaml:"page_size"`
	Filter    map[string]string `yaml:"filter"` // common filter for every source, e.g. kommune: 5001
}

// SourceConfiguration tells where a dataset comes from: a CSV file, the road network
// endpoint or road objects of given type
type SourceConfiguration struct {
	File       string            `yaml:"file"`
	Network    bool              `yaml:"network"`
	ObjectType int               `yaml:"object_type"`
	Filter     map[string]string `yaml:"filter"`
}

// IsRemote returns true if data has to be fetched from the API
func (src *SourceConfiguration) IsRemote() bool {
	return src.File == "" && (src.Network || src.ObjectType > 0)
}

// LayerConfiguration is an auxiliary layer and how its columns are aggregated
type LayerConfiguration struct {
	Name      string                 `yaml:"name"`
	Source    SourceConfiguration    `yaml:"source"`
	Prefix    string                 `yaml:"prefix"`
	Default   Aggregation            `yaml:"default"`
	Aggregate map[string]Aggregation `yaml:"aggregate"`
}

// JoinConfiguration is used in join mode: base is joined with every layer in order
type JoinConfiguration struct {
	Kind         string `yaml:"kind"`
	ClipGeometry bool   `yaml:"clip_geometry"`
	ClipChainage *bool  `yaml:"clip_chainage"`
}

// LoadConfiguration reads YAML file
func LoadConfiguration(fname string) (*Configuration, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read configuration file")
	}
	return ParseConfiguration(data)
}

// ParseConfiguration decodes and validates YAML configuration
func ParseConfiguration(data []byte) (*Configuration, error) {
	cfg := Configuration{
		SafetyFactor:     DefaultSafetyFactor,
		OverlapTolerance: DefaultOverlapTolerance,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "Can't decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every source is defined and numeric settings make sense
func (cfg *Configuration) Validate() error {
	if err := cfg.Base.validate(); err != nil {
		return errors.Wrap(err, "base")
	}
	for i := range cfg.Layers {
		if err := cfg.Layers[i].Source.validate(); err != nil {
			return errors.Wrapf(err, "layer #%d (%s)", i, cfg.Layers[i].Name)
		}
	}
	if cfg.MinLength < 0 {
		return errors.New("min_length must be non-negative")
	}
	if cfg.SafetyFactor <= 0 || cfg.SafetyFactor > 1 {
		return errors.New("safety_factor must be in (0, 1]")
	}
	if cfg.OverlapTolerance < 0 {
		return errors.New("overlap_tolerance must be non-negative")
	}
	if _, err := cfg.Join.JoinKind(); err != nil {
		return err
	}
	return nil
}

func (src *SourceConfiguration) validate() error {
	if src.File == "" && !src.Network && src.ObjectType <= 0 {
		return errors.New("source needs one of file, network or object_type")
	}
	if src.Network && src.ObjectType > 0 {
		return errors.New("source can't be both network and object_type")
	}
	return nil
}

// JoinKind parses join kind, inner by default
func (jc *JoinConfiguration) JoinKind() (JoinKind, error) {
	switch strings.ToLower(strings.TrimSpace(jc.Kind)) {
	case "", "inner":
		return JoinInner, nil
	case "left":
		return JoinLeft, nil
	}
	return JoinInner, errors.Errorf("unknown join kind '%s'", jc.Kind)
}

// JoinOptions returns options for joining with given layer
func (cfg *Configuration) JoinOptions(layer *LayerConfiguration) []func(*JoinResult) {
	options := []func(*JoinResult){WithClipGeometry(cfg.Join.ClipGeometry)}
	if cfg.Join.ClipChainage != nil {
		options = append(options, WithClipChainage(*cfg.Join.ClipChainage))
	}
	if layer.Prefix != "" {
		options = append(options, WithPrefix(layer.Prefix))
	}
	return options
}

// NewSegmenter builds segmenter from configuration
func (cfg *Configuration) NewSegmenter() *Segmenter {
	return NewSegmenter(
		WithMinLength(cfg.MinLength),
		WithSafetyFactor(cfg.SafetyFactor),
		WithOverlapTolerance(cfg.OverlapTolerance),
	)
}

// Layer binds layer configuration with loaded dataset
func (lc *LayerConfiguration) Layer(ds *Dataset) Layer {
	aggs := make(map[string]Aggregation, len(lc.Aggregate))
	for k, v := range lc.Aggregate {
		aggs[k] = v
	}
	return Layer{
		Dataset:      ds,
		Prefix:       lc.Prefix,
		Aggregations: aggs,
		Default:      lc.Default,
	}
}
