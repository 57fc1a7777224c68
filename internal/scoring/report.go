package scoring

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rawblock/wallet-gnn/pkg/models"
)

// WriteReport exports predictions as CSV with columns ADDRESS,PREDICTION.
func WriteReport(w io.Writer, rows []models.PredictionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ADDRESS", "PREDICTION"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Address, strconv.Itoa(r.Prediction)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportFile writes the report to path.
func WriteReportFile(path string, rows []models.PredictionRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteReport(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
