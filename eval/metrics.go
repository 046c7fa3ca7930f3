// Package eval scores prediction columns against ground-truth labels over
// the labelled training subset.
package eval

import (
	"fmt"

	"github.com/popvote/popvote-go/anndata"
)

// ClassMetrics holds the per-class scores of one evaluated column.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report holds the scores of one prediction column.
type Report struct {
	Accuracy float64
	PerClass map[string]ClassMetrics
	// Confusion counts predictions: Confusion[truth][predicted].
	Confusion map[string]map[string]int
	// N is the number of evaluated (labelled) observations.
	N int
}

// Evaluate scores resultKey against labelsKey over the labelled subset.
func Evaluate(ds *anndata.Dataset, labelsKey, resultKey string) (*Report, error) {
	labels, ok := ds.Categorical(labelsKey)
	if !ok {
		return nil, fmt.Errorf("labels column %q not found", labelsKey)
	}
	pred, ok := ds.Categorical(resultKey)
	if !ok {
		return nil, fmt.Errorf("result column %q not found", resultKey)
	}
	trainIdx, err := ds.TrainIndices()
	if err != nil {
		return nil, err
	}
	if len(trainIdx) == 0 {
		return nil, fmt.Errorf("no labelled observations to evaluate")
	}

	report := &Report{
		PerClass:  make(map[string]ClassMetrics),
		Confusion: make(map[string]map[string]int),
		N:         len(trainIdx),
	}

	correct := 0
	truePos := make(map[string]int)
	falsePos := make(map[string]int)
	falseNeg := make(map[string]int)
	support := make(map[string]int)

	for _, i := range trainIdx {
		truth := labels.Value(i)
		predicted := pred.Value(i)
		support[truth]++
		if report.Confusion[truth] == nil {
			report.Confusion[truth] = make(map[string]int)
		}
		report.Confusion[truth][predicted]++

		if truth == predicted {
			correct++
			truePos[truth]++
		} else {
			falseNeg[truth]++
			falsePos[predicted]++
		}
	}

	report.Accuracy = float64(correct) / float64(len(trainIdx))
	for _, class := range labels.Categories() {
		if support[class] == 0 && truePos[class] == 0 && falsePos[class] == 0 {
			continue
		}
		m := ClassMetrics{Support: support[class]}
		if tp := truePos[class]; tp > 0 {
			m.Precision = float64(tp) / float64(tp+falsePos[class])
			m.Recall = float64(tp) / float64(tp+falseNeg[class])
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.PerClass[class] = m
	}

	return report, nil
}
