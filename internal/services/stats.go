// Package services holds the domain logic between the HTTP surface and
// the record store: aggregation, the notification trigger, backup
// encoding and report export.
package services

import (
	"fmt"

	"github.com/adityarw/simep/internal/models"
)

// QuestionStat is the aggregate for one question over a response set.
// Average is a two-decimal display string; it is empty for text
// questions, which never aggregate numerically.
type QuestionStat struct {
	QuestionID string              `json:"questionId"`
	Label      string              `json:"label"`
	Type       models.QuestionType `json:"type"`
	Average    string              `json:"average,omitempty"`
	Count      int                 `json:"count"`
}

// Display renders the average with its unit suffix: stars are scored
// out of 5.0, sliders out of 100.
func (q QuestionStat) Display() string {
	switch q.Type {
	case models.QuestionStar:
		return q.Average + "/5.0"
	case models.QuestionSlider:
		return q.Average + "/100"
	default:
		return q.Average
	}
}

// OverallStats pools every star answer across all star questions into
// one average, and likewise for sliders. A type with no defined
// questions reports Has*=false and its average is not rendered.
type OverallStats struct {
	StarAvg   string `json:"starAvg"`
	SliderAvg string `json:"sliderAvg"`
	HasStar   bool   `json:"hasStar"`
	HasSlider bool   `json:"hasSlider"`
}

// FacilitatorStats is the per-facilitator slice of the export data.
type FacilitatorStats struct {
	Averages map[string]string   `json:"averages"`
	Comments map[string][]string `json:"comments"`
	Subject  string              `json:"subject,omitempty"`
}

// GroupStats aggregates the process question set as one undivided
// group.
type GroupStats struct {
	Averages map[string]string   `json:"averages"`
	Comments map[string][]string `json:"comments"`
}

// ExportData is the contract handed to document-rendering consumers.
type ExportData struct {
	Facilitators map[string]*FacilitatorStats `json:"facilitators"`
	Process      GroupStats                   `json:"process"`
}

func formatAverage(sum float64, count int) string {
	if count == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", sum/float64(count))
}

func averageFor(questionID string, responses []models.Response) (string, int) {
	var sum float64
	count := 0
	for _, r := range responses {
		if v, ok := r.NumericAnswer(questionID); ok {
			sum += v
			count++
		}
	}
	return formatAverage(sum, count), count
}

// CalculateStats reduces a response set against an ordered question
// schema into per-question aggregates, preserving question order.
// Inputs are never mutated; identical inputs give identical outputs.
func CalculateStats(questions []models.Question, responses []models.Response) []QuestionStat {
	stats := make([]QuestionStat, 0, len(questions))
	for _, q := range questions {
		st := QuestionStat{QuestionID: q.ID, Label: q.Label, Type: q.Type}
		if q.Type.Numeric() {
			st.Average, st.Count = averageFor(q.ID, responses)
		}
		stats = append(stats, st)
	}
	return stats
}

// CollectComments gathers every non-blank text answer for a question,
// in response order. Empty and whitespace-only answers are dropped.
func CollectComments(questionID string, responses []models.Response) []string {
	comments := []string{}
	for _, r := range responses {
		if s, ok := r.TextAnswer(questionID); ok {
			comments = append(comments, s)
		}
	}
	return comments
}

// CalculateOverallStats pools all numeric answers per question type.
func CalculateOverallStats(questions []models.Question, responses []models.Response) OverallStats {
	var out OverallStats
	var starSum, sliderSum float64
	var starCount, sliderCount int
	for _, q := range questions {
		switch q.Type {
		case models.QuestionStar:
			out.HasStar = true
			for _, r := range responses {
				if v, ok := r.NumericAnswer(q.ID); ok {
					starSum += v
					starCount++
				}
			}
		case models.QuestionSlider:
			out.HasSlider = true
			for _, r := range responses {
				if v, ok := r.NumericAnswer(q.ID); ok {
					sliderSum += v
					sliderCount++
				}
			}
		}
	}
	if out.HasStar {
		out.StarAvg = formatAverage(starSum, starCount)
	}
	if out.HasSlider {
		out.SliderAvg = formatAverage(sliderSum, sliderCount)
	}
	return out
}

// ProcessDataForExport groups a training's responses into the shape
// document renderers consume: one block per facilitator (keyed by the
// denormalized target name) and one undivided process block.
func ProcessDataForExport(training models.Training, responses []models.Response) ExportData {
	data := ExportData{
		Facilitators: map[string]*FacilitatorStats{},
		Process: GroupStats{
			Averages: map[string]string{},
			Comments: map[string][]string{},
		},
	}

	byFacilitator := map[string][]models.Response{}
	order := []string{}
	for _, r := range responses {
		if r.Type != models.ResponseFacilitator {
			continue
		}
		name := r.TargetName
		if name == "" {
			name = "Unknown"
		}
		if _, seen := byFacilitator[name]; !seen {
			order = append(order, name)
			data.Facilitators[name] = &FacilitatorStats{
				Averages: map[string]string{},
				Comments: map[string][]string{},
				Subject:  r.TargetSubject,
			}
		}
		byFacilitator[name] = append(byFacilitator[name], r)
	}

	for _, name := range order {
		group := byFacilitator[name]
		fs := data.Facilitators[name]
		for _, q := range training.FacilitatorQuestions {
			if q.Type == models.QuestionText {
				fs.Comments[q.ID] = CollectComments(q.ID, group)
			} else {
				avg, _ := averageFor(q.ID, group)
				fs.Averages[q.ID] = avg
			}
		}
	}

	process := []models.Response{}
	for _, r := range responses {
		if r.Type == models.ResponseProcess {
			process = append(process, r)
		}
	}
	for _, q := range training.ProcessQuestions {
		if q.Type == models.QuestionText {
			data.Process.Comments[q.ID] = CollectComments(q.ID, process)
		} else {
			avg, _ := averageFor(q.ID, process)
			data.Process.Averages[q.ID] = avg
		}
	}
	return data
}
