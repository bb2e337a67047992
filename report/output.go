// Package report writes training and evolution progress as CSV files.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/baldhumanity/evonet/neat"
	"github.com/baldhumanity/evonet/network"
)

const (
	TrainingFile  = "training.csv"
	EvolutionFile = "evolution.csv"
)

// TrainingRow is one scheduled progress sample of a training run.
type TrainingRow struct {
	Iteration int     `csv:"iteration"`
	Error     float64 `csv:"error"`
}

// NewTrainingRow converts a schedule event.
func NewTrainingRow(ev network.ScheduleEvent) TrainingRow {
	return TrainingRow{Iteration: ev.Iteration, Error: ev.Error}
}

// csvFile appends records to one CSV file, writing the header once.
type csvFile struct {
	path          string
	file          *os.File
	headerWritten bool
}

func (f *csvFile) write(records any) error {
	if f.file == nil {
		file, err := os.Create(f.path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Base(f.path), err)
		}
		f.file = file
	}
	if !f.headerWritten {
		if err := gocsv.Marshal(records, f.file); err != nil {
			return err
		}
		f.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f.file)
}

func (f *csvFile) close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// OutputManager handles CSV progress output of a run. Files are created on
// their first record.
type OutputManager struct {
	dir       string
	training  csvFile
	evolution csvFile
}

// NewOutputManager creates the output directory. Returns nil if dir is empty
// (output disabled); every method accepts a nil manager.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &OutputManager{
		dir:       dir,
		training:  csvFile{path: filepath.Join(dir, TrainingFile)},
		evolution: csvFile{path: filepath.Join(dir, EvolutionFile)},
	}, nil
}

// Dir returns the output directory.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteTraining appends a row to training.csv.
func (om *OutputManager) WriteTraining(row TrainingRow) error {
	if om == nil {
		return nil
	}
	if err := om.training.write([]TrainingRow{row}); err != nil {
		return fmt.Errorf("writing training: %w", err)
	}
	return nil
}

// WriteGeneration appends a row to evolution.csv.
func (om *OutputManager) WriteGeneration(stats neat.GenerationStats) error {
	if om == nil {
		return nil
	}
	if err := om.evolution.write([]neat.GenerationStats{stats}); err != nil {
		return fmt.Errorf("writing evolution: %w", err)
	}
	return nil
}

// Close closes every open file.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.training.close(), om.evolution.close())
}

// ReadTraining loads a training.csv file.
func ReadTraining(path string) ([]TrainingRow, error) {
	var rows []TrainingRow
	if err := readCSV(path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadGenerations loads an evolution.csv file.
func ReadGenerations(path string) ([]neat.GenerationStats, error) {
	var rows []neat.GenerationStats
	if err := readCSV(path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
