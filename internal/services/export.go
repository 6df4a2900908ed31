package services

import (
	"bytes"
	"encoding/csv"
	"sort"

	"github.com/adityarw/simep/internal/models"
)

// ExportRecapCSV renders the aggregated recap for one training as CSV:
// a facilitator section (one row per facilitator, one column per
// facilitator question) followed by a process section (one row per
// process question). This is the flat handoff for spreadsheet
// renderers; richer documents consume ProcessDataForExport directly.
func ExportRecapCSV(training models.Training, responses []models.Response) ([]byte, error) {
	data := ProcessDataForExport(training, responses)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := []string{"Fasilitator", "Materi"}
	for _, q := range training.FacilitatorQuestions {
		header = append(header, q.Label)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	// Sorted for stable output.
	names := make([]string, 0, len(data.Facilitators))
	for name := range data.Facilitators {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fs := data.Facilitators[name]
		row := []string{name, fs.Subject}
		for _, q := range training.FacilitatorQuestions {
			if q.Type == models.QuestionText {
				row = append(row, joinComments(fs.Comments[q.ID]))
			} else {
				row = append(row, fs.Averages[q.ID])
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	if err := w.Write([]string{}); err != nil {
		return nil, err
	}
	if err := w.Write([]string{"Variabel Penyelenggaraan", "Rata-rata"}); err != nil {
		return nil, err
	}
	for _, q := range training.ProcessQuestions {
		var value string
		if q.Type == models.QuestionText {
			value = joinComments(data.Process.Comments[q.ID])
		} else {
			value = data.Process.Averages[q.ID]
		}
		if err := w.Write([]string{q.Label, value}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func joinComments(comments []string) string {
	out := ""
	for i, c := range comments {
		if i > 0 {
			out += "; "
		}
		out += c
	}
	return out
}
