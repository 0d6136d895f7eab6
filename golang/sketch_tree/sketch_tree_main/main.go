package main

import (
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tarstars/sketch_tree/golang/sketch_tree/stl"
	"gonum.org/v1/gonum/mat"
)

type rootCmdConfig struct {
	config     string
	memprofile string
	logLevel   string
	threads    int
}

// HandleError logs a fatal error and stops the program.
func HandleError(err error) {
	if err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func main() {
	HandleError(cliParser().Execute())
}

func cliParser() *cobra.Command {
	config := &rootCmdConfig{}
	rootCmd := &cobra.Command{
		Use:           "sketch_tree",
		Short:         "sketch_tree grows histogram decision trees",
		Long:          `Grow a decision tree from npy datasets, predict with it, draw it and inspect feature importances`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return writeMemProfile(config.memprofile)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&config.config, "config", "c", "sketch_config.json", "a config file for the run of the program")
	flags.StringVar(&config.memprofile, "memprofile", "", "write memory profile to `file`")
	flags.StringVar(&config.logLevel, "log-level", "info", "debug, info, warn or error")
	flags.IntVar(&config.threads, "threads", 0, "number of worker goroutines, 0 for all cores")
	rootCmd.AddCommand(trainCmd(config), predictCmd(config), graphCmd(config), importanceCmd(config))
	return rootCmd
}

func writeMemProfile(fileName string) error {
	if fileName == "" {
		return nil
	}
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create memory profile")
	}
	defer func() { HandleError(f.Close()) }()
	runtime.GC()
	return errors.Wrap(pprof.WriteHeapProfile(f), "could not write memory profile")
}

func trainCmd(root *rootCmdConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Grow a tree and save its leaves",
		RunE: func(cmd *cobra.Command, args []string) error {
			var trainConfig TrainConfig
			if err := decodeConfig(root.config, cmd.Flags(), trainDefaults, &trainConfig); err != nil {
				return err
			}
			return train(trainConfig, newLogger(trainConfig.Log))
		},
	}
}

func train(trainConfig TrainConfig, logger *slog.Logger) error {
	X, y, z, err := stl.ReadTrainingSet(trainConfig.FileNameTrainFeatures, trainConfig.FileNameTrainTarget, trainConfig.FileNameTrainWeight)
	if err != nil {
		return err
	}
	if !trainConfig.UseWeight {
		z = nil
	}
	layouts, err := readLayouts(trainConfig.FileNameLayouts)
	if err != nil {
		return err
	}

	engine := stl.NewEngine(
		stl.WithMaxBins(trainConfig.MaxBins),
		stl.WithSubsampleRate(trainConfig.SubsampleRate),
		stl.WithSeed(trainConfig.Seed),
		stl.WithSampleRows(trainConfig.SampleRows),
		stl.WithWorkers(trainConfig.ThreadsNum),
		stl.WithSplitSelector(stl.VarianceSplitSelector{
			MinLeafCount: trainConfig.MinLeafCount,
			Lambda:       trainConfig.RegLambda,
			UseWeight:    trainConfig.UseWeight,
			MinGain:      trainConfig.MinGain,
		}),
		stl.WithLeafPredicate(stl.GrowthLimits{MaxDepth: trainConfig.MaxDepth, MinSplit: trainConfig.MinSplit}),
		stl.WithFeatureNames(trainConfig.FeatureNames),
		stl.WithLogger(logger),
		stl.WithDiagnostic(func(d stl.Diagnostic) {
			logger.Debug("forced leaf", "reason", d.Kind.String(), "path", d.PathID, "rows", d.Rows)
		}),
	)
	if err := engine.Fit(X, y, z, layouts); err != nil {
		return err
	}

	if trainConfig.FileNameLayouts != "" && layouts == nil {
		if err := writeJSON(trainConfig.FileNameLayouts, engine.Layouts()); err != nil {
			return err
		}
	}
	records, err := engine.Dump(trainConfig.Compact)
	if err != nil {
		return err
	}
	if err := stl.SaveRecords(trainConfig.FileNameModel, records); err != nil {
		return err
	}
	logger.Info("model saved", "file", trainConfig.FileNameModel, "leaves", len(records))

	if trainConfig.FileNameOutOfBag != "" {
		if err := writeOutOfBag(engine, X, trainConfig.FileNameOutOfBag); err != nil {
			return err
		}
	}
	return nil
}

// writeOutOfBag stores the predictions for the rows left out of the fit, NaN
// for the rows used by it.
func writeOutOfBag(engine *stl.Engine, X *mat.Dense, fileName string) error {
	prediction, err := engine.Predict(X, stl.PredictRaw)
	if err != nil {
		return err
	}
	oob := make([]float64, len(prediction))
	for p := range oob {
		oob[p] = nan
	}
	for _, p := range engine.OutOfBag() {
		oob[p] = prediction[p]
	}
	return stl.WriteNpyVector(fileName, oob)
}

func predictCmd(root *rootCmdConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Apply a saved tree to a feature matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			var predictConfig PredictConfig
			if err := decodeConfig(root.config, cmd.Flags(), nil, &predictConfig); err != nil {
				return err
			}
			return predict(predictConfig, newLogger(predictConfig.Log))
		},
	}
}

func predict(predictConfig PredictConfig, logger *slog.Logger) error {
	X, err := stl.ReadNpyMatrix(predictConfig.FileNameFeatures)
	if err != nil {
		return err
	}
	engine, err := loadModel(predictConfig.FileNameModel, stl.WithWorkers(predictConfig.ThreadsNum), stl.WithLogger(logger))
	if err != nil {
		return err
	}
	mode := stl.PredictRaw
	if predictConfig.Rounded {
		mode = stl.PredictRounded
	}
	prediction, err := engine.Predict(X, mode)
	if err != nil {
		return err
	}
	logger.Info("prediction done", "rows", len(prediction), "file", predictConfig.FileNamePrediction)
	return stl.WriteNpyVector(predictConfig.FileNamePrediction, prediction)
}

func graphCmd(root *rootCmdConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Render a saved tree with graphviz",
		RunE: func(cmd *cobra.Command, args []string) error {
			var graphConfig GraphConfig
			if err := decodeConfig(root.config, cmd.Flags(), graphDefaults, &graphConfig); err != nil {
				return err
			}
			logger := newLogger(graphConfig.Log)
			engine, err := loadModel(graphConfig.FileNameModel, stl.WithLogger(logger))
			if err != nil {
				return err
			}
			tree, err := engine.Tree()
			if err != nil {
				return err
			}
			logger.Info("render tree", "file", graphConfig.FileNamePicture, "type", graphConfig.FigureType)
			return tree.RenderFile(graphConfig.FeatureNames, graphConfig.FigureType, graphConfig.FileNamePicture)
		},
	}
}

func importanceCmd(root *rootCmdConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "importance",
		Short: "Compute feature importances of a saved tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			var importanceConfig ImportanceConfig
			if err := decodeConfig(root.config, cmd.Flags(), nil, &importanceConfig); err != nil {
				return err
			}
			return importance(importanceConfig, newLogger(importanceConfig.Log))
		},
	}
}

func importance(importanceConfig ImportanceConfig, logger *slog.Logger) error {
	engine, err := loadModel(importanceConfig.FileNameModel, stl.WithLogger(logger))
	if err != nil {
		return err
	}
	leaves := engine.Leaves()
	imp := stl.FeatureImportances(leaves, importanceConfig.NFeatures)
	for q, v := range imp {
		if v > 0 {
			logger.Info("feature importance", "feature", stl.FeatureName(importanceConfig.FeatureNames, q), "importance", v)
		}
	}
	complete := 0
	for _, pair := range stl.SiblingPairs(leaves) {
		if pair.HasSibling() {
			complete++
		}
	}
	logger.Info("sibling leaves", "pairs", complete, "leaves", len(leaves))
	if importanceConfig.FileNameImportances == "" {
		return nil
	}
	return stl.WriteNpyVector(importanceConfig.FileNameImportances, imp)
}
