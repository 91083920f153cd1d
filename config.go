package etcnome

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/etcnome-go/internal/effects"
	"github.com/cbegin/etcnome-go/internal/tone"
)

// Config is the on-disk configuration. Zero fields keep their defaults.
type Config struct {
	SampleRate int     `yaml:"sample_rate"`
	Lookahead  int     `yaml:"lookahead"`
	Repeat     bool    `yaml:"repeat"`
	Speed      float64 `yaml:"speed"`
	Workers    int     `yaml:"workers"`
	LogLevel   string  `yaml:"log_level"`

	Click ClickConfig `yaml:"click"`
	Bus   BusConfig   `yaml:"bus"`
}

type ClickConfig struct {
	Duration  float64 `yaml:"duration"`
	Attack    float64 `yaml:"attack"`
	NoiseMix  float64 `yaml:"noise_mix"`
	BasePitch float64 `yaml:"base_pitch"`
	Gain      float64 `yaml:"gain"`
}

// BusConfig describes the output bus: a three band EQ followed by an
// optional limiter.
type BusConfig struct {
	Limiter bool    `yaml:"limiter"`
	Low     float32 `yaml:"low"`
	Mid     float32 `yaml:"mid"`
	High    float32 `yaml:"high"`
}

func DefaultConfig() Config {
	p := tone.DefaultParams()
	return Config{
		SampleRate: DefaultSampleRate,
		Lookahead:  MinLookahead,
		Speed:      1,
		LogLevel:   "info",
		Click: ClickConfig{
			Duration:  p.Duration,
			Attack:    p.Attack,
			NoiseMix:  p.NoiseMix,
			BasePitch: p.BasePitch,
			Gain:      p.Gain,
		},
		Bus: BusConfig{Limiter: true, Low: 1, Mid: 1, High: 1},
	}
}

// ParseConfig decodes YAML on top of the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.Lookahead < MinLookahead:
		return errors.Errorf("lookahead must be at least %d, got %d", MinLookahead, c.Lookahead)
	case !(c.Speed > 0):
		return errors.Errorf("speed must be positive, got %v", c.Speed)
	case c.Workers < 0:
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	case !(c.Click.Duration > 0):
		return errors.Errorf("click.duration must be positive, got %v", c.Click.Duration)
	case c.Click.Attack < 0 || c.Click.Attack > c.Click.Duration:
		return errors.Errorf("click.attack must be between 0 and click.duration, got %v", c.Click.Attack)
	case c.Click.NoiseMix < 0 || c.Click.NoiseMix > 1:
		return errors.Errorf("click.noise_mix must be between 0 and 1, got %v", c.Click.NoiseMix)
	case !(c.Click.BasePitch > 0):
		return errors.Errorf("click.base_pitch must be positive, got %v", c.Click.BasePitch)
	case c.Bus.Low < 0 || c.Bus.Mid < 0 || c.Bus.High < 0:
		return errors.New("bus gains must not be negative")
	}
	return nil
}

func (c Config) Params() tone.Params {
	return tone.Params{
		Duration:  c.Click.Duration,
		Attack:    c.Click.Attack,
		NoiseMix:  c.Click.NoiseMix,
		BasePitch: c.Click.BasePitch,
		Gain:      c.Click.Gain,
	}
}

// NewBus builds the output bus, or returns nil when it would do nothing.
func (c Config) NewBus(sampleRate int) effects.Effector {
	chain := effects.NewChain()
	if c.Bus.Low != 1 || c.Bus.Mid != 1 || c.Bus.High != 1 {
		chain.Add(effects.NewEQ3Band(sampleRate, c.Bus.Low, c.Bus.Mid, c.Bus.High, 300, 3000))
	}
	if c.Bus.Limiter {
		chain.Add(effects.DefaultLimiter(sampleRate))
	}
	if chain.Len() == 0 {
		return nil
	}
	return chain
}

// Options turns the configuration into Player and Exporter options. They
// share one click cache.
func (c Config) Options() []Option {
	workers := c.Workers
	ensembleOpts := []tone.Option{tone.WithParams(c.Params())}
	if workers > 0 {
		ensembleOpts = append(ensembleOpts, tone.WithWorkers(workers))
	}
	return []Option{
		WithSampleRate(c.SampleRate),
		WithLookahead(c.Lookahead),
		WithRepeat(c.Repeat),
		WithSpeed(c.Speed),
		WithWorkers(workers),
		WithEnsemble(tone.NewEnsemble(ensembleOpts...)),
		WithBus(c.NewBus),
	}
}
