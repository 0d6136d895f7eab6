package stl

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// ReadNpyMatrix reads a two dimensional npy file.
func ReadNpyMatrix(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open npy matrix")
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read npy header of %s", fileName)
	}
	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, errors.Wrapf(err, "read npy matrix %s", fileName)
	}
	return denseMat, nil
}

// ReadNpyVector reads an npy file of any shape as a flat vector.
func ReadNpyVector(fileName string) ([]float64, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open npy vector")
	}
	defer f.Close()

	var vec []float64
	if err := npyio.Read(f, &vec); err != nil {
		return nil, errors.Wrapf(err, "read npy vector %s", fileName)
	}
	return vec, nil
}

// WriteNpyVector stores a vector as a one dimensional npy file.
func WriteNpyVector(fileName string, vec []float64) error {
	dst, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create npy file")
	}
	if err := npyio.Write(dst, vec); err != nil {
		dst.Close()
		return errors.Wrapf(err, "write npy vector %s", fileName)
	}
	return errors.Wrap(dst.Close(), "close npy file")
}

// ReadTrainingSet reads the features, the target and an optional weight file.
// An empty weight file name gives nil weights.
func ReadTrainingSet(featuresFile, targetFile, weightFile string) (X *mat.Dense, y, z []float64, err error) {
	slog.Debug("load features", "file", featuresFile)
	if X, err = ReadNpyMatrix(featuresFile); err != nil {
		return nil, nil, nil, err
	}
	slog.Debug("load target", "file", targetFile)
	if y, err = ReadNpyVector(targetFile); err != nil {
		return nil, nil, nil, err
	}
	if weightFile != "" {
		slog.Debug("load weight", "file", weightFile)
		if z, err = ReadNpyVector(weightFile); err != nil {
			return nil, nil, nil, err
		}
	}
	return X, y, z, nil
}
