// Package config loads the roadgraph YAML configuration.
package config

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendRedis  = "redis"
	BackendBadger = "badger"

	MultiGridSize = 28
)

type Config struct {
	Mongo       MongoConfig       `yaml:"mongo"`
	Progress    ProgressConfig    `yaml:"progress"`
	Elevation   ElevationConfig   `yaml:"elevation"`
	Boundary    BoundaryConfig    `yaml:"boundary"`
	Grid        GridConfig        `yaml:"grid"`
	Contraction ContractionConfig `yaml:"contraction"`
	Export      ExportConfig      `yaml:"export"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" validate:"required"`
	Database string `yaml:"database" validate:"required"`
	// standalone servers do not support multi-document transactions
	DisableTransactions bool `yaml:"disable_transactions"`
}

type ProgressConfig struct {
	Backend string `yaml:"backend" validate:"oneof=redis badger"`
	Redis   struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db" validate:"gte=0"`
	} `yaml:"redis"`
	Badger struct {
		Dir string `yaml:"dir"`
	} `yaml:"badger"`
}

type ElevationConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type BoundaryConfig struct {
	MinLat float64 `yaml:"min_lat" validate:"gte=-90,lte=90,ltfield=MaxLat"`
	MaxLat float64 `yaml:"max_lat" validate:"gte=-90,lte=90"`
	MinLon float64 `yaml:"min_lon" validate:"gte=-180,lte=180,ltfield=MaxLon"`
	MaxLon float64 `yaml:"max_lon" validate:"gte=-180,lte=180"`
}

// BoundingBox returns the boundary with both maximum edges closed.
func (b BoundaryConfig) BoundingBox() datastructure.BoundingBox {
	return datastructure.BoundingBox{
		MinLat:    b.MinLat,
		MaxLat:    b.MaxLat,
		MinLon:    b.MinLon,
		MaxLon:    b.MaxLon,
		ClosedLat: true,
		ClosedLon: true,
	}
}

type GridConfig struct {
	Multi   bool `yaml:"multi"`
	Size    int  `yaml:"size" validate:"gte=1"`
	Workers int  `yaml:"workers" validate:"gte=1"`
}

// DefaultSize is the grid side used when none is configured.
func (g GridConfig) DefaultSize() int {
	if g.Multi {
		return MultiGridSize
	}
	return 1
}

type ContractionConfig struct {
	Workers int `yaml:"workers" validate:"gte=1"`
}

type ExportConfig struct {
	Dir        string `yaml:"dir" validate:"required"`
	Resolution int    `yaml:"resolution" validate:"gte=0,lte=15"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is given: a local
// MongoDB and elevation service, the Slovenia boundary and an embedded
// progress store.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "geo_data"
	}
	if c.Progress.Backend == "" {
		c.Progress.Backend = BackendBadger
	}
	if c.Progress.Redis.Addr == "" {
		c.Progress.Redis.Addr = "localhost:6379"
	}
	if c.Progress.Badger.Dir == "" {
		c.Progress.Badger.Dir = "data/progress"
	}
	if c.Elevation.URL == "" {
		c.Elevation.URL = "http://localhost:8080/api/v1/lookup"
	}
	if c.Elevation.Timeout == 0 {
		c.Elevation.Timeout = 30 * time.Second
	}
	if c.Boundary == (BoundaryConfig{}) {
		c.Boundary = BoundaryConfig{MinLat: 45.4, MaxLat: 46.9, MinLon: 13.6, MaxLon: 16.6}
	}
	if c.Grid.Size == 0 {
		c.Grid.Size = c.Grid.DefaultSize()
	}
	if c.Grid.Workers == 0 {
		c.Grid.Workers = 4
	}
	if c.Contraction.Workers == 0 {
		c.Contraction.Workers = 4
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data/graph"
	}
	if c.Export.Resolution == 0 {
		c.Export.Resolution = 9
	}
}

// Load reads path, fills in defaults and validates the result. An empty path
// or a missing file yields the defaults.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return c, errs.Wrap(errs.ErrCodeInvalidInput, err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return c, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse config %s", path)
			}
		}
	}
	c.applyDefaults()
	return c, c.Validate()
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	trans    ut.Translator
)

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
}

// Validate reports every invalid field in one error with English messages.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "validate config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Translate(trans))
	}
	return errs.New(errs.ErrCodeInvalidInput, "invalid config: %s", strings.Join(msgs, "; "))
}
