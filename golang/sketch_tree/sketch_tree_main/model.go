package main

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/tarstars/sketch_tree/golang/sketch_tree/stl"
)

var nan = math.NaN()

func loadModel(fileName string, options ...stl.Option) (*stl.Engine, error) {
	records, err := stl.LoadRecords(fileName)
	if err != nil {
		return nil, err
	}
	engine := stl.NewEngine(options...)
	if err := engine.Load(records); err != nil {
		return nil, err
	}
	return engine, nil
}

// readLayouts loads bin layouts saved by an earlier training. A missing file
// means that the layouts have to be built.
func readLayouts(fileName string) ([]stl.FeatureBinLayout, error) {
	if fileName == "" {
		return nil, nil
	}
	data, err := os.ReadFile(fileName)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read layouts")
	}
	var layouts []stl.FeatureBinLayout
	if err := json.Unmarshal(data, &layouts); err != nil {
		return nil, errors.Wrapf(err, "parse layouts %s", fileName)
	}
	return layouts, nil
}

func writeJSON(fileName string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	return errors.Wrapf(os.WriteFile(fileName, data, 0o644), "write %s", fileName)
}
