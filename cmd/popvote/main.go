// Command popvote runs a full annotation pipeline from a YAML configuration:
// load the dataset, run every configured algorithm, vote, score, and
// optionally persist the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/popvote/popvote-go/algorithms"
	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/annotate"
	"github.com/popvote/popvote-go/eval"
	"github.com/popvote/popvote-go/knn"
	"github.com/popvote/popvote-go/pkg/config"
	"github.com/popvote/popvote-go/utils"
)

func main() {
	configPath := flag.String("config", "popvote.yaml", "path to the run configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		utils.GetLogger().Error("Annotation run failed", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := utils.GetLogger()
	log.SetLevel(utils.ParseLevel(cfg.LogLevel))
	log.SetFormat(cfg.LogFormat)

	ds, err := anndata.LoadCSV(cfg.Data.FeaturesCSV, cfg.Data.ObsCSV, anndata.LoadOptions{
		BatchColumn:    cfg.Data.BatchColumn,
		LabelsColumn:   cfg.Data.LabelsColumn,
		UnlabeledToken: cfg.Data.UnlabeledToken,
	})
	if err != nil {
		return err
	}
	log.Info("Loaded dataset", utils.Int("n_obs", ds.NumObs()))

	registry := algorithms.DefaultRegistry()
	algs := make([]algorithms.Algorithm, 0, len(cfg.Algorithms))
	for _, ac := range cfg.Algorithms {
		alg, err := registry.New(ac.Name, algorithms.Config{
			ResultKey:    ac.ResultKey,
			EmbeddingKey: ac.EmbeddingKey,
			Method:       ac.Method,
			Classifier:   ac.Classifier,
			Embedding:    ac.Embedding,
		}, knn.Backend(cfg.Backend))
		if err != nil {
			return err
		}
		algs = append(algs, alg)
	}

	annotator, err := annotate.New(algs, annotate.Options{
		ReturnProbabilities: cfg.ReturnProbabilities,
		ComputeEmbedding:    cfg.ComputeEmbedding,
	})
	if err != nil {
		return err
	}

	result, err := annotator.Run(ds)
	if err != nil {
		return err
	}
	log.Info("Annotation run finished",
		utils.String("run_id", result.ID),
		utils.Int("n_obs", result.NumObs),
		utils.Int("n_labelled", result.NumLabelled))

	if report, err := eval.Evaluate(ds, anndata.LabelsKey, result.ConsensusKey); err == nil {
		log.Info("Consensus accuracy on labelled subset", utils.Float("accuracy", report.Accuracy))
	} else {
		log.Warn("Could not evaluate consensus", utils.String("reason", err.Error()))
	}

	if cfg.ResultsDB != "" {
		if err := persist(cfg, ds, result); err != nil {
			return fmt.Errorf("failed to persist results: %w", err)
		}
		log.Info("Results stored", utils.String("db", cfg.ResultsDB))
	}

	return nil
}

// persist writes the run record and every prediction column to the results
// database.
func persist(cfg *config.Config, ds *anndata.Dataset, result *annotate.RunResult) error {
	store, err := utils.NewResultsStore(cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	rawCfg, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := store.SaveRun(ctx, &utils.RunRecord{
		ID:           result.ID,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		NumObs:       result.NumObs,
		NumLabelled:  result.NumLabelled,
		ConsensusKey: result.ConsensusKey,
		Config:       string(rawCfg),
	}); err != nil {
		return err
	}

	names := ds.ObsNames()
	keys := append([]string{}, result.ResultKeys...)
	keys = append(keys, result.ConsensusKey)
	for _, key := range keys {
		col, ok := ds.Categorical(key)
		if !ok {
			return fmt.Errorf("result column %q not found", key)
		}
		probs, hasProbs := ds.Float(key + "_probabilities")

		preds := make([]utils.PredictionRecord, ds.NumObs())
		for i := range preds {
			preds[i] = utils.PredictionRecord{
				ObsName:   names[i],
				ResultKey: key,
				Label:     col.Value(i),
			}
			if hasProbs {
				p := probs[i]
				preds[i].Probability = &p
			}
		}
		if err := store.SavePredictions(ctx, result.ID, preds); err != nil {
			return err
		}
	}

	return nil
}
