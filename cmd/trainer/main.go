// Command trainer fits the fraud GNN on a labeled training set, saves the
// parameter blob and scores a test set into a prediction report.
//
// Usage:
//
//	trainer -train train.csv -test test.csv -data ./dataset -out model.bin -report predictions.csv
//	trainer -labels-db -test test.csv              # training labels from address_labels
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rawblock/wallet-gnn/internal/config"
	"github.com/rawblock/wallet-gnn/internal/db"
	"github.com/rawblock/wallet-gnn/internal/device"
	"github.com/rawblock/wallet-gnn/internal/gnn"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/metrics"
	"github.com/rawblock/wallet-gnn/internal/scoring"
	"github.com/rawblock/wallet-gnn/internal/shadow"
	"github.com/rawblock/wallet-gnn/internal/store"
	"github.com/rawblock/wallet-gnn/internal/trainer"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

func main() {
	var (
		trainPath  = flag.String("train", "", "training CSV with ADDRESS,LABEL columns")
		labelsDB   = flag.Bool("labels-db", false, "read training labels from the address_labels table")
		testPath   = flag.String("test", "", "test CSV with an ADDRESS column (LABEL optional)")
		dataDir    = flag.String("data", "", "CSV dataset directory (overrides DATA_DIR)")
		outPath    = flag.String("out", "", "where to write the model blob (default MODEL_PATH)")
		reportPath = flag.String("report", "predictions.csv", "where to write the ADDRESS,PREDICTION report")
		epochs     = flag.Int("epochs", trainer.DefaultOptions().Epochs, "training epochs")
		lr         = flag.Float64("lr", trainer.DefaultOptions().LearningRate, "AdamW learning rate")
		wd         = flag.Float64("weight-decay", trainer.DefaultOptions().WeightDecay, "AdamW weight decay")
		hidden     = flag.Int("hidden", gnn.DefaultConfig().HiddenChannels, "hidden channels")
		heads      = flag.Int("heads", gnn.DefaultConfig().Heads, "attention heads of the first GAT layer")
		seed       = flag.Uint64("seed", gnn.DefaultConfig().Seed, "parameter init seed")
		threshold  = flag.Float64("threshold", scoring.DefaultThreshold, "prediction threshold")
		shadowOf   = flag.String("shadow-against", "", "production model blob to compare the new model against on the test set")
	)
	flag.Parse()

	if *dataDir != "" {
		os.Setenv("DATA_DIR", *dataDir)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if *outPath == "" {
		*outPath = cfg.ModelPath
	}
	if *trainPath == "" && !*labelsDB {
		log.Fatal("FATAL: -train or -labels-db is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	txStore, dbConn, err := cfg.OpenStore()
	if err != nil {
		log.Fatalf("FATAL: no transaction store available: %v", err)
	}
	if dbConn != nil {
		defer dbConn.Close()
	}
	builder := graph.NewBuilder(txStore, cfg.BuilderOptions())

	labels, err := trainingLabels(ctx, *trainPath, *labelsDB, dbConn)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	addrs := make([]string, len(labels))
	for i, l := range labels {
		addrs[i] = l.Address
	}

	trainGraph, err := builder.Build(ctx, addrs)
	if err != nil {
		log.Fatalf("FATAL: build training graph: %v", err)
	}

	mcfg := gnn.DefaultConfig()
	mcfg.HiddenChannels = *hidden
	mcfg.Heads = *heads
	mcfg.Seed = *seed
	model, err := gnn.New(mcfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	dev := device.Resolve(cfg.Device)
	opts := trainer.DefaultOptions()
	opts.Epochs = *epochs
	opts.LearningRate = *lr
	opts.WeightDecay = *wd
	opts.Threshold = *threshold
	opts.LabelPolicy = cfg.LabelPolicy

	res, err := trainer.Train(ctx, model, trainGraph, labels, opts)
	if err != nil {
		var te *trainer.TrainingError
		if errors.As(err, &te) {
			log.Fatalf("FATAL: training aborted at epoch %d (last loss %.6f): %v", te.Epoch, te.LastLoss, te.Err)
		}
		log.Fatalf("FATAL: %v", err)
	}
	log.Printf("[Trainer] Done in %s: average accuracy %.4f, final loss %.6f", res.Duration, res.AverageAccuracy, res.FinalLoss)

	if err := gnn.SaveFile(*outPath, model, string(dev)); err != nil {
		log.Fatalf("FATAL: save model: %v", err)
	}
	log.Printf("[Trainer] Model saved to %s", *outPath)

	if *testPath == "" {
		return
	}
	rows, err := evaluateTestSet(ctx, builder, model, *testPath, *threshold)
	if err != nil {
		log.Fatalf("FATAL: evaluate %s: %v", *testPath, err)
	}
	if err := scoring.WriteReportFile(*reportPath, rows); err != nil {
		log.Fatalf("FATAL: write report: %v", err)
	}
	log.Printf("[Evaluator] Wrote %d predictions to %s", len(rows), *reportPath)

	if *shadowOf != "" {
		if err := compareWithProduction(ctx, builder, model, *shadowOf, rows, *threshold); err != nil {
			log.Printf("Warning: shadow comparison failed: %v", err)
		}
	}
}

// compareWithProduction scores the test addresses with the currently
// deployed model and the freshly trained one and logs the drift.
func compareWithProduction(ctx context.Context, builder *graph.Builder, candidate *gnn.Model, prodPath string, rows []models.PredictionRow, threshold float64) error {
	production, _, err := gnn.LoadFile(prodPath)
	if err != nil {
		return err
	}
	runner, err := shadow.NewRunner(production, candidate, threshold)
	if err != nil {
		return err
	}

	addrs := make([]string, len(rows))
	for i, r := range rows {
		addrs[i] = r.Address
	}
	g, err := builder.Build(ctx, addrs)
	if err != nil {
		return err
	}
	_, report, err := runner.Compare(g, addrs)
	if err != nil {
		return err
	}
	log.Printf("[Shadow] %d addresses: agreement=%.4f divergences=%d flips=%d meanAbsDelta=%.4f maxAbsDelta=%.4f",
		report.Total, report.Agreement, report.Divergences, report.PredictionFlips, report.MeanAbsDelta, report.MaxAbsDelta)
	return nil
}

func trainingLabels(ctx context.Context, path string, fromDB bool, dbConn *db.PostgresStore) ([]models.LabeledAddress, error) {
	if fromDB {
		if dbConn == nil {
			return nil, errors.New("-labels-db needs a reachable DATABASE_URL")
		}
		return dbConn.LoadLabels(ctx)
	}
	return readLabelsFile(path)
}

// evaluateTestSet scores the test addresses. When the CSV carries labels a
// classification summary is logged as well.
func evaluateTestSet(ctx context.Context, builder *graph.Builder, model *gnn.Model, path string, threshold float64) ([]models.PredictionRow, error) {
	labels, err := readLabelsFile(path)
	if errors.Is(err, store.ErrMissingColumn) {
		addrs, err := readAddressesFile(path)
		if err != nil {
			return nil, err
		}
		handle := scoring.NewModelHandle(nil)
		handle.Swap(model)
		return scoring.NewService(builder, handle).EvaluateAddresses(ctx, addrs, threshold)
	}
	if err != nil {
		return nil, err
	}

	addrs := make([]string, len(labels))
	for i, l := range labels {
		addrs[i] = l.Address
	}
	g, err := builder.Build(ctx, addrs)
	if errors.Is(err, graph.ErrEmptyGraph) {
		log.Printf("[Evaluator] Warning: no test address has transactions, every score is 0")
		rows := make([]models.PredictionRow, len(addrs))
		for i, a := range addrs {
			rows[i] = models.PredictionRow{Address: a, Prediction: scoring.Predict(0, threshold)}
		}
		return rows, nil
	}
	if err != nil {
		return nil, err
	}

	rows, report, err := scoring.EvaluateLabeled(model, g, labels, threshold)
	if err != nil {
		return nil, err
	}
	logReport(report)
	return rows, nil
}

func logReport(r metrics.Report) {
	log.Printf("[Evaluator] accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f auc=%.4f (tp=%d fp=%d tn=%d fn=%d)",
		r.Accuracy, r.Precision, r.Recall, r.F1, r.AUC,
		r.Confusion.TP, r.Confusion.FP, r.Confusion.TN, r.Confusion.FN)
}

func readLabelsFile(path string) ([]models.LabeledAddress, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return store.ReadLabels(f)
}

func readAddressesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return store.ReadAddresses(f)
}
