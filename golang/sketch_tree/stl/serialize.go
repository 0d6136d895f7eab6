package stl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// PathStep is one serialized predicate of a leaf path.
type PathStep struct {
	Feature      string  `json:"feature" yaml:"feature"`
	FeatureIndex int     `json:"feature_index" yaml:"feature_index"`
	Threshold    float64 `json:"threshold" yaml:"threshold"`
	Direction    string  `json:"direction" yaml:"direction"`
	MissingLeft  bool    `json:"missing_left" yaml:"missing_left"`
}

// LeafRecord is the serialized form of a leaf. Count, PathID and Depth are
// bookkeeping and are left out in compact mode.
type LeafRecord struct {
	Path   []PathStep `json:"path" yaml:"path"`
	Value  float64    `json:"value" yaml:"value"`
	Count  int        `json:"count,omitempty" yaml:"count,omitempty"`
	PathID string     `json:"path_id,omitempty" yaml:"path_id,omitempty"`
	Depth  int        `json:"depth,omitempty" yaml:"depth,omitempty"`
}

// FeatureName returns the name of a feature, falling back to f_<index>.
func FeatureName(featureNames []string, feature int) string {
	if feature >= 0 && feature < len(featureNames) && featureNames[feature] != "" {
		return featureNames[feature]
	}
	return fmt.Sprintf("f_%d", feature)
}

// Dump converts the leaves into records, keeping their order.
func Dump(leaves []Leaf, featureNames []string, compact bool) []LeafRecord {
	records := make([]LeafRecord, len(leaves))
	for ind, leaf := range leaves {
		steps := make([]PathStep, len(leaf.Path))
		for depth, p := range leaf.Path {
			steps[depth] = PathStep{
				Feature:      FeatureName(featureNames, p.Feature),
				FeatureIndex: p.Feature,
				Threshold:    p.Threshold,
				Direction:    p.Direction.String(),
				MissingLeft:  p.MissingLeft,
			}
		}
		records[ind] = LeafRecord{Path: steps, Value: leaf.Value}
		if !compact {
			records[ind].Count = leaf.Count
			records[ind].PathID = leaf.PathID
			records[ind].Depth = leaf.Depth()
		}
	}
	return records
}

// Load rebuilds the leaves from records and flattens them. Growth is not rerun.
func Load(records []LeafRecord) ([]Leaf, *FlatTree, error) {
	leaves := make([]Leaf, len(records))
	for ind, record := range records {
		path := make([]Predicate, len(record.Path))
		for depth, step := range record.Path {
			var dir Direction
			switch strings.ToUpper(step.Direction) {
			case "L":
				dir = Left
			case "R":
				dir = Right
			default:
				return nil, nil, errors.Errorf("record %d step %d: unknown direction %q", ind, depth, step.Direction)
			}
			if step.FeatureIndex < 0 {
				return nil, nil, errors.Errorf("record %d step %d: negative feature index", ind, depth)
			}
			path[depth] = Predicate{Feature: step.FeatureIndex, Threshold: step.Threshold, Direction: dir, MissingLeft: step.MissingLeft}
		}
		leaves[ind] = Leaf{Index: ind, PathID: pathIDOf(path), Path: path, Value: record.Value, Count: record.Count}
	}

	tree, err := BuildFlatTree(leaves)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load leaf records")
	}
	return leaves, tree, nil
}

// Format is an encoding of a record list.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Anything but .yaml and .yml
// is JSON.
func FormatOf(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// EncodeRecords writes the records in the given format.
func EncodeRecords(w io.Writer, records []LeafRecord, format Format) error {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return errors.Wrap(err, "marshal yaml records")
		}
		_, err = w.Write(data)
		return errors.Wrap(err, "write yaml records")
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(records), "encode json records")
	}
	return errors.Errorf("unknown record format %q", format)
}

// DecodeRecords reads records in the given format.
func DecodeRecords(r io.Reader, format Format) ([]LeafRecord, error) {
	var records []LeafRecord
	switch format {
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "read yaml records")
		}
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, errors.Wrap(err, "parse yaml records")
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, errors.Wrap(err, "parse json records")
		}
	default:
		return nil, errors.Errorf("unknown record format %q", format)
	}
	return records, nil
}

// SaveRecords writes the records to a file, picking the format from its name.
func SaveRecords(fileName string, records []LeafRecord) (err error) {
	dest, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create model file")
	}
	defer func() {
		if closeErr := dest.Close(); err == nil {
			err = errors.Wrap(closeErr, "close model file")
		}
	}()
	return EncodeRecords(dest, records, FormatOf(fileName))
}

// LoadRecords reads the records saved by SaveRecords.
func LoadRecords(fileName string) ([]LeafRecord, error) {
	source, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open model file")
	}
	defer source.Close()
	return DecodeRecords(source, FormatOf(fileName))
}
