package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	File       string `mapstructure:"file" json:"file"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

type TrainConfig struct {
	FileNameTrainFeatures string    `mapstructure:"filename_train_features" json:"filename_train_features"`
	FileNameTrainTarget   string    `mapstructure:"filename_train_target" json:"filename_train_target"`
	FileNameTrainWeight   string    `mapstructure:"filename_train_weight" json:"filename_train_weight"`
	FileNameLayouts       string    `mapstructure:"filename_layouts" json:"filename_layouts"`
	FileNameModel         string    `mapstructure:"filename_model" json:"filename_model"`
	FileNameOutOfBag      string    `mapstructure:"filename_out_of_bag" json:"filename_out_of_bag"`
	FeatureNames          []string  `mapstructure:"feature_names" json:"feature_names"`
	MaxBins               int       `mapstructure:"max_bins" json:"max_bins"`
	MaxDepth              int       `mapstructure:"max_depth" json:"max_depth"`
	MinSplit              int       `mapstructure:"min_split" json:"min_split"`
	MinLeafCount          int       `mapstructure:"min_leaf_count" json:"min_leaf_count"`
	RegLambda             float64   `mapstructure:"reg_lambda" json:"reg_lambda"`
	MinGain               float64   `mapstructure:"min_gain" json:"min_gain"`
	UseWeight             bool      `mapstructure:"use_weight" json:"use_weight"`
	SubsampleRate         float64   `mapstructure:"subsample_rate" json:"subsample_rate"`
	Seed                  int64     `mapstructure:"seed" json:"seed"`
	SampleRows            int       `mapstructure:"sample_rows" json:"sample_rows"`
	ThreadsNum            int       `mapstructure:"threads_num" json:"threads_num"`
	Compact               bool      `mapstructure:"compact" json:"compact"`
	Log                   LogConfig `mapstructure:"log" json:"log"`
}

type PredictConfig struct {
	FileNameFeatures   string    `mapstructure:"filename_features" json:"filename_features"`
	FileNameModel      string    `mapstructure:"filename_model" json:"filename_model"`
	FileNamePrediction string    `mapstructure:"filename_prediction" json:"filename_prediction"`
	Rounded            bool      `mapstructure:"rounded" json:"rounded"`
	ThreadsNum         int       `mapstructure:"threads_num" json:"threads_num"`
	Log                LogConfig `mapstructure:"log" json:"log"`
}

type GraphConfig struct {
	FileNameModel   string    `mapstructure:"filename_model" json:"filename_model"`
	FileNamePicture string    `mapstructure:"filename_picture" json:"filename_picture"`
	FigureType      string    `mapstructure:"figure_type" json:"figure_type"`
	FeatureNames    []string  `mapstructure:"feature_names" json:"feature_names"`
	Log             LogConfig `mapstructure:"log" json:"log"`
}

type ImportanceConfig struct {
	FileNameModel       string    `mapstructure:"filename_model" json:"filename_model"`
	FileNameImportances string    `mapstructure:"filename_importances" json:"filename_importances"`
	NFeatures           int       `mapstructure:"n_features" json:"n_features"`
	FeatureNames        []string  `mapstructure:"feature_names" json:"feature_names"`
	Log                 LogConfig `mapstructure:"log" json:"log"`
}

var trainDefaults = map[string]any{
	"max_bins":       64,
	"max_depth":      6,
	"min_split":      2,
	"min_leaf_count": 1,
	"subsample_rate": 1.0,
}

var graphDefaults = map[string]any{
	"figure_type": "svg",
}

// decodeConfig reads a JSON or YAML config file into out. SKETCH_TREE_* variables
// and the changed flags of the command take precedence over the file.
func decodeConfig(srcConfig string, flags *pflag.FlagSet, defaults map[string]any, out any) error {
	v := viper.New()
	v.SetConfigFile(srcConfig)
	v.SetEnvPrefix("SKETCH_TREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", srcConfig)
	}
	if flags != nil {
		if f := flags.Lookup("log-level"); f != nil && f.Changed {
			v.Set("log.level", f.Value.String())
		}
		if f := flags.Lookup("threads"); f != nil && f.Changed {
			v.Set("threads_num", f.Value.String())
		}
	}
	if err := v.Unmarshal(out); err != nil {
		return errors.Wrapf(err, "decode config %s", srcConfig)
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogger builds a JSON logger writing to stdout, or to a rotated file when
// one is configured.
func newLogger(cfg LogConfig) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.Level)}))
}
