// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"io"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/tarstars/sketch_tree/golang/sketch_tree/stl"
	"gonum.org/v1/gonum/mat"
)

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	engines           = make(map[uint64]*stl.Engine)

	lastErrorMu sync.Mutex
	lastError   string

	quietLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

func storeEngine(e *stl.Engine) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	engines[handle] = e
	nextHandle++
	return handle
}

func fetchEngine(handle uint64) (*stl.Engine, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	e, ok := engines[handle]
	if !ok {
		return nil, errors.Errorf("invalid model handle %d", handle)
	}
	return e, nil
}

//export FreeModel
func FreeModel(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(engines, uint64(handle))
}

// sliceFromPtr views C memory as a Go slice without copying.
func sliceFromPtr(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length), nil
}

func copyFloatSlice(ptr *C.double, length int) ([]float64, error) {
	src, err := sliceFromPtr(ptr, length)
	if err != nil || src == nil {
		return nil, err
	}
	return append([]float64(nil), src...), nil
}

func buildDense(ptr *C.double, rows, cols C.int) (*mat.Dense, error) {
	r, c := int(rows), int(cols)
	if r <= 0 || c <= 0 {
		return nil, errors.Errorf("invalid matrix dimensions %dx%d", r, c)
	}
	data, err := copyFloatSlice(ptr, r*c)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(r, c, data), nil
}

//export TrainModel
func TrainModel(
	featuresPtr *C.double,
	rows C.int,
	cols C.int,
	targetPtr *C.double,
	weightPtr *C.double,
	maxBins C.int,
	maxDepth C.int,
	minSplit C.int,
	regLambda C.double,
	subsampleRate C.double,
	seed C.longlong,
	threadsNum C.int,
) C.ulonglong {
	setLastError(nil)

	features, err := buildDense(featuresPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 0
	}
	target, err := copyFloatSlice(targetPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 0
	}
	var weight []float64
	useWeight := weightPtr != nil
	if useWeight {
		if weight, err = copyFloatSlice(weightPtr, int(rows)); err != nil {
			setLastError(err)
			return 0
		}
	}

	e := stl.NewEngine(
		stl.WithMaxBins(int(maxBins)),
		stl.WithLeafPredicate(stl.GrowthLimits{MaxDepth: int(maxDepth), MinSplit: int(minSplit)}),
		stl.WithSplitSelector(stl.VarianceSplitSelector{MinLeafCount: 1, Lambda: float64(regLambda), UseWeight: useWeight}),
		stl.WithSubsampleRate(float64(subsampleRate)),
		stl.WithSeed(int64(seed)),
		stl.WithWorkers(int(threadsNum)),
		stl.WithLogger(quietLogger),
	)
	if err := e.Fit(features, target, weight, nil); err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeEngine(e))
}

//export Predict
func Predict(
	handle C.ulonglong,
	featuresPtr *C.double,
	rows C.int,
	cols C.int,
	outputPtr *C.double,
	rounded C.int,
) C.int {
	setLastError(nil)
	e, err := fetchEngine(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	features, err := buildDense(featuresPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 2
	}
	mode := stl.PredictRaw
	if rounded != 0 {
		mode = stl.PredictRounded
	}
	prediction, err := e.Predict(features, mode)
	if err != nil {
		setLastError(err)
		return 3
	}
	outSlice, err := sliceFromPtr(outputPtr, int(rows))
	if err != nil {
		setLastError(err)
		return 4
	}
	copy(outSlice, prediction)
	return 0
}

//export FeatureImportances
func FeatureImportances(handle C.ulonglong, outputPtr *C.double, nFeatures C.int) C.int {
	setLastError(nil)
	e, err := fetchEngine(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	imp := stl.FeatureImportances(e.Leaves(), int(nFeatures))
	if len(imp) > int(nFeatures) {
		setLastError(errors.Errorf("the model uses %d features, the buffer holds %d", len(imp), int(nFeatures)))
		return 2
	}
	outSlice, err := sliceFromPtr(outputPtr, int(nFeatures))
	if err != nil {
		setLastError(err)
		return 3
	}
	copy(outSlice, imp)
	return 0
}

//export SaveModel
func SaveModel(handle C.ulonglong, path *C.char, compact C.int) C.int {
	setLastError(nil)
	e, err := fetchEngine(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	records, err := e.Dump(compact != 0)
	if err != nil {
		setLastError(err)
		return 2
	}
	if err := stl.SaveRecords(C.GoString(path), records); err != nil {
		setLastError(err)
		return 3
	}
	return 0
}

//export LoadModel
func LoadModel(path *C.char) C.ulonglong {
	setLastError(nil)
	records, err := stl.LoadRecords(C.GoString(path))
	if err != nil {
		setLastError(err)
		return 0
	}
	e := stl.NewEngine(stl.WithLogger(quietLogger))
	if err := e.Load(records); err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeEngine(e))
}

//export RenderTree
func RenderTree(handle C.ulonglong, path, figureType *C.char) C.int {
	setLastError(nil)
	e, err := fetchEngine(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	tree, err := e.Tree()
	if err != nil {
		setLastError(err)
		return 2
	}
	goFigureType := C.GoString(figureType)
	if goFigureType == "" {
		goFigureType = "svg"
	}
	if err := tree.RenderFile(e.FeatureNames(), goFigureType, C.GoString(path)); err != nil {
		setLastError(err)
		return 3
	}
	return 0
}

//export GetLastError
func GetLastError() *C.char {
	errStr := getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
