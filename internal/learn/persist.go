package learn

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type weightsFile struct {
	Weights      map[Table]weights `json:"weights"`
	LearningRate *float64          `json:"learning_rate,omitempty"`
	DecayRate    *float64          `json:"decay_rate,omitempty"`
	HistorySize  int               `json:"history_size"`
}

// Encode writes the weight tables, rates, and history size as JSON. History
// events themselves are not written.
func (e *Engine) Encode(w io.Writer) error {
	e.mu.Lock()
	doc := weightsFile{
		Weights:      e.tables,
		LearningRate: &e.learningRate,
		DecayRate:    &e.decayRate,
		HistorySize:  e.historyOffset + len(e.history),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(doc)
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	return nil
}

// Decode replaces the engine's tables and rates with a JSON weights
// document. Missing rates keep their defaults; a missing weights object or
// an unknown table is an error. History is cleared and its size is taken
// from the document.
func (e *Engine) Decode(r io.Reader) error {
	var doc weightsFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWeights, err)
	}
	if doc.Weights == nil {
		return fmt.Errorf("%w: missing weights", ErrInvalidWeights)
	}

	tables := emptyTables()
	for name, tbl := range doc.Weights {
		if _, ok := tables[name]; !ok {
			return fmt.Errorf("%w: unknown table %q", ErrInvalidWeights, name)
		}
		for ctxKey, row := range tbl {
			if len(row) == 0 {
				continue
			}
			tables[name][ctxKey] = row
		}
	}

	lr, dr := DefaultLearningRate, DefaultDecayRate
	if doc.LearningRate != nil {
		lr = *doc.LearningRate
	}
	if doc.DecayRate != nil {
		dr = *doc.DecayRate
	}
	if err := CheckRates(lr, dr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables = tables
	e.learningRate = lr
	e.decayRate = dr
	e.history = nil
	e.historyOffset = doc.HistorySize
	return nil
}

// CheckRates reports rates outside learning_rate (0,1] and decay_rate (0,1).
func CheckRates(learningRate, decayRate float64) error {
	var errs []error
	if !(learningRate > 0 && learningRate <= 1) {
		errs = append(errs, fmt.Errorf("learning_rate must be in (0,1], got %g", learningRate))
	}
	if !(decayRate > 0 && decayRate < 1) {
		errs = append(errs, fmt.Errorf("decay_rate must be in (0,1), got %g", decayRate))
	}
	return errors.Join(errs...)
}

// Save writes the weights document to path, creating parent directories.
func (e *Engine) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".weights-*.json")
	if err != nil {
		return fmt.Errorf("create weights file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}

	e.logger.Info("learn: saved weights", "path", path)
	return nil
}

// Load reads a weights document from path.
func (e *Engine) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()

	if err := e.Decode(f); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.logger.Info("learn: loaded weights", "path", path)
	return nil
}
