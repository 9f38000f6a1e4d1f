// Package classifier wraps the TensorFlow Lite plate condition model.
//
// The adapter is deliberately failure absorbing: a missing model artifact or
// a failed inference never propagates an error, it degrades to the
// ("Error", 0.0) sentinel so callers need no special error path.
package classifier

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/errors"
	"github.com/baseera/baseera-go/internal/imageproc"
	"github.com/baseera/baseera-go/internal/observability"
)

// SentinelLabel is returned for every classification that could not be
// produced by the model.
const SentinelLabel = "Error"

// SentinelConfidence accompanies SentinelLabel.
const SentinelConfidence = 0.0

// Result is one classification outcome.
type Result struct {
	Label      string  // class label, SentinelLabel on failure
	Confidence float64 // percentage 0-100, 0 on failure
}

// Classifier runs the plate condition model. A Classifier is always safe to
// use; when the model could not be loaded every call returns the sentinel.
type Classifier struct {
	Settings *conf.Settings

	interpreter *tflite.Interpreter
	labels      []string
	inputSize   int
	metrics     *observability.Metrics
	mu          sync.Mutex
}

// New initializes a new Classifier instance with the given settings. It never
// fails: when the model artifact is absent or initialization errors, the
// returned Classifier is in degraded mode and classifies everything as the
// sentinel.
func New(settings *conf.Settings, metrics *observability.Metrics) *Classifier {
	c := &Classifier{
		Settings:  settings,
		inputSize: settings.Model.InputSize,
		metrics:   metrics,
	}

	if err := c.initialize(); err != nil {
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			GetLogger().Warn("Model unavailable, classifier degraded to error sentinel",
				append([]any{"error", err.Error()}, ee.LogAttrs()...)...)
		} else {
			GetLogger().Warn("Model unavailable, classifier degraded to error sentinel",
				"error", err.Error())
		}
		c.interpreter = nil
	}
	return c
}

// initialize loads the model and labels and allocates the interpreter.
func (c *Classifier) initialize() error {
	start := time.Now()

	modelData, err := os.ReadFile(c.Settings.Model.Path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryModelLoad).
			Context("model_path", c.Settings.Model.Path).
			Timing("model-load", time.Since(start)).
			Build()
	}

	if err := c.loadLabels(); err != nil {
		return err
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return errors.Newf("cannot load TensorFlow Lite model").
			Category(errors.CategoryModelInit).
			Context("model_path", c.Settings.Model.Path).
			Context("model_size_mb", len(modelData)/1024/1024).
			Build()
	}

	threads := c.determineThreadCount(c.Settings.Model.Threads)

	options := tflite.NewInterpreterOptions()

	// Try to use XNNPACK delegate if enabled in settings
	if c.Settings.Model.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))})
		if delegate == nil {
			GetLogger().Warn("Failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, userData any) {
		GetLogger().Error("TFLite error", "message", msg)
	}, nil)

	c.interpreter = tflite.NewInterpreter(model, options)
	if c.interpreter == nil {
		return errors.Newf("cannot create interpreter").
			Category(errors.CategoryModelInit).
			Build()
	}
	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		c.interpreter = nil
		return errors.Newf("tensor allocation failed: %v", status).
			Category(errors.CategoryModelInit).
			Build()
	}

	if err := c.validateModelAndLabels(); err != nil {
		c.interpreter = nil
		return err
	}

	// The model data is no longer needed as TFLite has created its own
	// internal copy.
	runtime.GC()

	GetLogger().Info("Plate model initialized",
		"model", c.Settings.Model.Path,
		"labels", len(c.labels),
		"input_size", c.inputSize,
		"threads", threads,
		"total_cpus", runtime.NumCPU())
	return nil
}

// loadLabels reads the class label file, one label per line.
func (c *Classifier) loadLabels() error {
	file, err := os.Open(c.Settings.Model.LabelPath)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryLabelLoad).
			Context("label_path", c.Settings.Model.LabelPath).
			Build()
	}
	defer func() {
		if err := file.Close(); err != nil {
			GetLogger().Warn("Failed to close label file",
				"error", err, "path", c.Settings.Model.LabelPath)
		}
	}()

	c.labels = c.labels[:0]
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			c.labels = append(c.labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.New(err).
			Category(errors.CategoryLabelLoad).
			Context("label_path", c.Settings.Model.LabelPath).
			Build()
	}
	if len(c.labels) == 0 {
		return errors.Newf("label file %s contains no labels", c.Settings.Model.LabelPath).
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return nil
}

// validateModelAndLabels checks that the label count matches the model's
// output size.
func (c *Classifier) validateModelAndLabels() error {
	outputTensor := c.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return errors.Newf("cannot get output tensor from model").
			Category(errors.CategoryValidation).
			Build()
	}

	modelOutputSize := outputTensor.Dim(outputTensor.NumDims() - 1)
	if len(c.labels) != modelOutputSize {
		return errors.Newf("label count mismatch: model expects %d classes but label file has %d labels",
			modelOutputSize, len(c.labels)).
			Category(errors.CategoryValidation).
			Context("expected_labels", modelOutputSize).
			Context("actual_labels", len(c.labels)).
			Build()
	}
	return nil
}

// determineThreadCount calculates the number of threads to use based on
// settings and system capabilities.
func (c *Classifier) determineThreadCount(configuredThreads int) int {
	systemCPUCount := runtime.NumCPU()
	if configuredThreads <= 0 || configuredThreads > systemCPUCount {
		return systemCPUCount
	}
	return configuredThreads
}

// Available reports whether the model is loaded and inference is possible.
func (c *Classifier) Available() bool {
	return c.interpreter != nil
}

// Labels returns the class labels in model output order.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Classify runs a single forward pass on img and returns the top class label
// with its confidence as a percentage in [0, 100]. Every failure degrades to
// the sentinel; Classify never returns an error.
func (c *Classifier) Classify(img image.Image) Result {
	if c.interpreter == nil || img == nil {
		c.metrics.IncClassifierError()
		return Result{Label: SentinelLabel, Confidence: SentinelConfidence}
	}

	label, confidence, err := c.predict(img)
	if err != nil {
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			GetLogger().Warn("Inference failed, returning error sentinel",
				append([]any{"error", err.Error()}, ee.LogAttrs()...)...)
		} else {
			GetLogger().Warn("Inference failed, returning error sentinel", "error", err.Error())
		}
		c.metrics.IncClassifierError()
		return Result{Label: SentinelLabel, Confidence: SentinelConfidence}
	}
	return Result{Label: label, Confidence: confidence}
}

// predict performs the forward pass. Locking prevents concurrent access to
// the interpreter, which is not thread safe.
func (c *Classifier) predict(img image.Image) (label string, confidence float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	defer func() {
		c.metrics.ObserveInference(time.Since(start))
	}()

	inputTensor := c.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return "", 0, errors.Newf("cannot get input tensor").
			Category(errors.CategoryInference).
			Build()
	}

	sample := imageproc.ToTensor(img, c.inputSize)
	dst := inputTensor.Float32s()
	if len(dst) != len(sample) {
		return "", 0, errors.Newf("input tensor size mismatch: model wants %d floats, image produced %d", len(dst), len(sample)).
			Category(errors.CategoryInference).
			Context("input_size", c.inputSize).
			Build()
	}
	copy(dst, sample)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return "", 0, errors.Newf("tensor invoke failed: %v", status).
			Category(errors.CategoryInference).
			Timing("invoke", time.Since(start)).
			Build()
	}

	outputTensor := c.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return "", 0, errors.Newf("cannot get output tensor").
			Category(errors.CategoryInference).
			Build()
	}

	probs := outputTensor.Float32s()
	if len(probs) != len(c.labels) {
		return "", 0, fmt.Errorf("mismatched labels and predictions lengths: %d vs %d", len(c.labels), len(probs))
	}

	// The model's final layer is softmax, outputs are a probability
	// distribution already.
	topIdx := 0
	for i := range probs {
		if probs[i] > probs[topIdx] {
			topIdx = i
		}
	}

	p := float64(probs[topIdx])
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	return c.labels[topIdx], p * 100.0, nil
}

// Delete releases resources used by the TensorFlow Lite interpreter.
func (c *Classifier) Delete() {
	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
}
