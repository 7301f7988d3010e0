package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// FilterConfig is read from the file given by --log-config.
//
//	format: json
//	filters:
//	  - "info+:*"
//	  - "debug+:race.*"
type FilterConfig struct {
	Format  string   `yaml:"format"`
	Filters []string `yaml:"filters"`
}

func LoadFilterConfig(file string) (*FilterConfig, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read log config: %w", err)
	}
	return ParseFilterConfig(data)
}

func ParseFilterConfig(data []byte) (*FilterConfig, error) {
	var cfg FilterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse log config: %w", err)
	}
	if len(cfg.Filters) == 0 {
		cfg.Filters = []string{"info+:*"}
	}
	return &cfg, nil
}

// NewFiltered creates a logger whose output is restricted by the zapfilter rules
// of cfg. The base core accepts every level, the rules decide per logger name.
//
//nolint:whitespace // can't make both editor and linter happy
func NewFiltered(
	writer io.Writer,
	cfg *FilterConfig,
	opts ...Option,
) (*Logger, error) {
	if writer == nil {
		writer = os.Stderr
	}
	rules, err := zapfilter.ParseRules(strings.Join(cfg.Filters, " "))
	if err != nil {
		return nil, fmt.Errorf("invalid log filter: %w", err)
	}
	var enc zapcore.Encoder
	if cfg.Format == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	}
	atomic := zap.NewAtomicLevelAt(DebugLevel)
	core := zapfilter.NewFilteringCore(
		zapcore.NewCore(enc, zapcore.AddSync(writer), atomic),
		rules)
	return &Logger{l: zap.New(core, opts...), level: atomic}, nil
}
