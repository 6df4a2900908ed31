package models

import (
	"strings"
	"time"
)

// QuestionType classifies how a question is answered and aggregated.
// Star and slider answers are numeric; text answers are free-form and
// excluded from numeric aggregation.
type QuestionType string

const (
	QuestionStar   QuestionType = "star"
	QuestionSlider QuestionType = "slider"
	QuestionText   QuestionType = "text"
)

// Numeric reports whether answers of this type participate in averages.
func (t QuestionType) Numeric() bool {
	return t == QuestionStar || t == QuestionSlider
}

// QuestionCategory tells which question set a global question template
// seeds at training-creation time.
type QuestionCategory string

const (
	CategoryFacilitator QuestionCategory = "facilitator"
	CategoryProcess     QuestionCategory = "process"
)

// ResponseType distinguishes evaluations of a facilitator from
// evaluations of the training process itself.
type ResponseType string

const (
	ResponseFacilitator ResponseType = "facilitator"
	ResponseProcess     ResponseType = "process"
)

// Question is a single evaluation item within a training.
type Question struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Type  QuestionType `json:"type"`
}

// GlobalQuestion is a reusable question template. It is copied by value
// into new trainings; later edits never touch existing trainings.
type GlobalQuestion struct {
	Question
	Category  QuestionCategory `json:"category"`
	IsDefault bool             `json:"isDefault,omitempty"`
}

// Facilitator is a named presenter inside a training. The session date
// must lie within the parent training's range; that rule is enforced by
// the caller, not the store. WhatsApp is the optional delivery
// destination for automated reports.
type Facilitator struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Subject  string `json:"subject,omitempty"`
	Date     string `json:"date,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// Training is one evaluation campaign. Dates are calendar dates in
// YYYY-MM-DD form, matching the persisted wire format.
type Training struct {
	ID                    string          `json:"id"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	StartDate             string          `json:"startDate"`
	EndDate               string          `json:"endDate"`
	ProcessEvaluationDate string          `json:"processEvaluationDate,omitempty"`
	Facilitators          []Facilitator   `json:"facilitators"`
	FacilitatorQuestions  []Question      `json:"facilitatorQuestions"`
	ProcessQuestions      []Question      `json:"processQuestions"`
	AccessCode            string          `json:"accessCode"`
	Targets               []int           `json:"targets"`
	ReportedTargets       map[string]bool `json:"reportedTargets"`
	CreatedAt             time.Time       `json:"createdAt"`
}

// HasTarget reports whether count is one of the configured
// response-count thresholds.
func (t *Training) HasTarget(count int) bool {
	for _, v := range t.Targets {
		if v == count {
			return true
		}
	}
	return false
}

// Response is one respondent's submission. Append-only: never mutated,
// removed only when its parent training is deleted. Answers maps a
// question id to either a number (star/slider) or a string (text);
// after JSON decoding numbers arrive as float64.
type Response struct {
	ID            string         `json:"id"`
	TrainingID    string         `json:"trainingId"`
	Type          ResponseType   `json:"type"`
	TargetName    string         `json:"targetName,omitempty"`
	TargetSubject string         `json:"targetSubject,omitempty"`
	Answers       map[string]any `json:"answers"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// NumericAnswer returns the numeric answer for a question id, if the
// stored value is in fact a number. String or missing answers for a
// numeric question are excluded from aggregation, not treated as zero.
func (r *Response) NumericAnswer(questionID string) (float64, bool) {
	switch v := r.Answers[questionID].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// TextAnswer returns the text answer for a question id, or false when
// the answer is missing, non-string, or whitespace-only.
func (r *Response) TextAnswer(questionID string) (string, bool) {
	s, ok := r.Answers[questionID].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Contact is an address-book entry, read-only input to training
// creation (copied onto the facilitator, never referenced).
type Contact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp"`
}

// AppSettings is the singleton configuration record. Stored values are
// merged over hard-coded defaults so old snapshots keep working when
// fields are added.
type AppSettings struct {
	WAAPIKey                   string `json:"waApiKey"`
	WABaseURL                  string `json:"waBaseUrl"`
	WAHeader                   string `json:"waHeader"`
	WAFooter                   string `json:"waFooter"`
	DefaultTrainingDescription string `json:"defaultTrainingDescription"`
}
