package services

import (
	"strings"
	"time"

	"github.com/adityarw/simep/internal/idgen"
	"github.com/adityarw/simep/internal/models"
)

// TrainingStore is the slice of the record store the training workflow
// needs.
type TrainingStore interface {
	ListTrainings() []models.Training
	GetTrainingByID(id string) (models.Training, bool)
	UpsertTraining(t models.Training) error
	DeleteTraining(id string) error
}

// TrainingService validates and saves trainings. The record store
// stays dumb; field rules and the duplicate-title confirmation live
// here.
type TrainingService struct {
	store TrainingStore
	now   func() time.Time
}

func NewTrainingService(store TrainingStore) *TrainingService {
	return &TrainingService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

const dateLayout = "2006-01-02"

// Save validates and upserts a training. Missing required fields and
// an inverted date range block the write. A new training whose title
// matches an existing one is refused with a conflict unless force is
// set — the caller surfaces that as a non-blocking confirmation.
func (s *TrainingService) Save(t models.Training, force bool) (models.Training, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" || t.StartDate == "" || t.EndDate == "" {
		return models.Training{}, NewInvalidError("title, start date and end date are required")
	}
	start, err := time.Parse(dateLayout, t.StartDate)
	if err != nil {
		return models.Training{}, NewInvalidError("start date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, t.EndDate)
	if err != nil {
		return models.Training{}, NewInvalidError("end date must be YYYY-MM-DD")
	}
	if start.After(end) {
		return models.Training{}, NewInvalidError("start date must not be after end date")
	}
	if t.ProcessEvaluationDate == "" {
		t.ProcessEvaluationDate = t.EndDate
	}

	if t.ID == "" {
		t.ID = idgen.NewID()
	}
	_, exists := s.store.GetTrainingByID(t.ID)
	if !exists {
		if !force && s.titleTaken(t.Title) {
			return models.Training{}, NewConflictError("a training with this title already exists")
		}
		if t.AccessCode == "" {
			t.AccessCode = idgen.NewAccessCode()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now()
		}
	}

	if err := s.store.UpsertTraining(t); err != nil {
		return models.Training{}, err
	}
	saved, _ := s.store.GetTrainingByID(t.ID)
	return saved, nil
}

func (s *TrainingService) titleTaken(title string) bool {
	for _, existing := range s.store.ListTrainings() {
		if strings.EqualFold(strings.TrimSpace(existing.Title), title) {
			return true
		}
	}
	return false
}

// Delete removes a training and its responses.
func (s *TrainingService) Delete(id string) error {
	if _, ok := s.store.GetTrainingByID(id); !ok {
		return NewNotFoundError("training not found")
	}
	return s.store.DeleteTraining(id)
}
