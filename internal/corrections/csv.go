package corrections

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/store"
)

// ParseCSV reads reviewer corrections from a CSV file. The header must name
// a record id column (id or prediction_record_id) and a corrected value
// column (corrected_value or value); other columns are ignored.
func ParseCSV(r io.Reader) ([]Input, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "corrections: read csv header")
	}

	idCol, valueCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "id", "prediction_record_id":
			if idCol < 0 {
				idCol = i
			}
		case "corrected_value", "value":
			if valueCol < 0 {
				valueCol = i
			}
		}
	}
	if idCol < 0 || valueCol < 0 {
		return nil, eris.New("corrections: csv must have record id and corrected value columns")
	}

	var inputs []Input
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "corrections: read csv row")
		}
		if idCol >= len(record) || valueCol >= len(record) {
			continue
		}
		id := strings.TrimSpace(record[idCol])
		if id == "" {
			continue
		}
		inputs = append(inputs, Input{
			PredictionRecordID: id,
			CorrectedValue:     strings.TrimSpace(record[valueCol]),
		})
	}
	return inputs, nil
}

// exportPageSize bounds how many results are held in memory per page
// while streaming an export.
const exportPageSize = 1000

// ExportCSV streams a prediction's results as the review CSV. The
// corrected_value column is prefilled with each record's current effective
// value, so an edited file round-trips through ParseCSV and Apply with
// untouched rows dropping out as no-ops.
func (in *Ingestor) ExportCSV(ctx context.Context, predictionID string, w io.Writer) error {
	if _, err := in.store.GetPrediction(ctx, predictionID); err != nil {
		return err
	}

	existing, err := in.store.ListCorrections(ctx, predictionID)
	if err != nil {
		return err
	}
	effective := make(map[string]string, len(existing))
	for _, c := range existing {
		effective[c.PredictionRecordID] = c.PredictionValue
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "row_id", "provided_value", "prediction_value", "confidence", "agree", "corrected_value"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "corrections: write csv header")
	}

	for page := 1; ; page++ {
		rp, err := in.store.ListPredictionResults(ctx, predictionID,
			model.Page{Page: page, PageSize: exportPageSize},
			store.ResultListOptions{})
		if err != nil {
			return err
		}

		for _, r := range rp.Results {
			corrected := r.PredictionValue
			if v, ok := effective[r.ID]; ok {
				corrected = v
			}
			row := []string{
				r.ID,
				r.RowID,
				r.ProvidedValue,
				r.PredictionValue,
				strconv.FormatFloat(r.Confidence, 'f', -1, 64),
				strconv.FormatBool(r.Agree),
				corrected,
			}
			if err := cw.Write(row); err != nil {
				return eris.Wrapf(err, "corrections: write csv row %s", r.ID)
			}
		}

		if !rp.HasMore {
			break
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "corrections: flush csv")
}
