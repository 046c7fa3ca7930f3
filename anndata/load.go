package anndata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// LoadOptions controls how raw CSV files become a Dataset.
type LoadOptions struct {
	// BatchColumn is the obs CSV column holding the batch annotation.
	BatchColumn string
	// LabelsColumn is the obs CSV column holding cell-type labels.
	LabelsColumn string
	// UnlabeledToken marks observations without a ground-truth label.
	// Rows whose label equals the token are excluded from the train mask.
	UnlabeledToken string
}

// LoadCSV builds a Dataset from a feature matrix CSV and an obs metadata CSV.
//
// The features file carries a header of feature names and one numeric row per
// observation. The obs file carries a header and one row per observation,
// first column the observation name, in the same row order as the features
// file. The batch and labels columns are copied into the well-known
// BatchKey/LabelsKey columns and the train mask is derived from the
// unlabeled token.
func LoadCSV(featuresPath, obsPath string, opts LoadOptions) (*Dataset, error) {
	x, err := readMatrixCSV(featuresPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read features CSV: %w", err)
	}
	rows, _ := x.Dims()

	names, columns, err := readObsCSV(obsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read obs CSV: %w", err)
	}
	if len(names) != rows {
		return nil, fmt.Errorf("features CSV has %d observations, obs CSV has %d", rows, len(names))
	}

	ds, err := NewDataset(names, x)
	if err != nil {
		return nil, err
	}

	batch, ok := columns[opts.BatchColumn]
	if !ok {
		return nil, fmt.Errorf("batch column %q not found in obs CSV", opts.BatchColumn)
	}
	if err := ds.SetCategoricalValues(BatchKey, batch); err != nil {
		return nil, err
	}

	labels, ok := columns[opts.LabelsColumn]
	if !ok {
		return nil, fmt.Errorf("labels column %q not found in obs CSV", opts.LabelsColumn)
	}
	labelled := make([]bool, len(labels))
	for i, l := range labels {
		labelled[i] = l != opts.UnlabeledToken
	}
	if err := ds.SetCategoricalValues(LabelsKey, labels); err != nil {
		return nil, err
	}
	if err := ds.SetBool(TrainMaskKey, labelled); err != nil {
		return nil, err
	}

	return ds, nil
}

// readMatrixCSV reads a headered numeric CSV into a dense matrix.
func readMatrixCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("expected a header row and at least one data row, got %d rows", len(records))
	}

	cols := len(records[0])
	rows := len(records) - 1
	data := make([]float64, rows*cols)
	for i, record := range records[1:] {
		if len(record) != cols {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(record), cols)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j, err)
			}
			data[i*cols+j] = v
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// readObsCSV reads the obs metadata CSV: observation names from the first
// column, the remaining columns keyed by header name.
func readObsCSV(path string) ([]string, map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("expected a header row and at least one data row, got %d rows", len(records))
	}

	header := records[0]
	if len(header) < 2 {
		return nil, nil, fmt.Errorf("obs CSV needs an observation-name column and at least one metadata column")
	}

	names := make([]string, 0, len(records)-1)
	columns := make(map[string][]string, len(header)-1)
	for _, h := range header[1:] {
		columns[h] = make([]string, 0, len(records)-1)
	}
	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(record), len(header))
		}
		names = append(names, record[0])
		for j, h := range header[1:] {
			columns[h] = append(columns[h], record[j+1])
		}
	}
	return names, columns, nil
}
