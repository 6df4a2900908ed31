// Package store is the typed record layer over the snapshot blob
// store. Every mutation is a whole-collection read-modify-write; reads
// of malformed data fail soft to empty values and a logged diagnostic,
// never an error to the caller.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adityarw/simep/internal/idgen"
	"github.com/adityarw/simep/internal/models"
	"github.com/adityarw/simep/internal/storage"
)

type Store struct {
	blob storage.Blob
	log  *logrus.Logger
}

func New(blob storage.Blob, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{blob: blob, log: log}
}

// readList decodes a collection. Absent or corrupt storage yields an
// empty slice; corruption is logged, not surfaced.
func readList[T any](s *Store, key string) []T {
	raw, ok, err := s.blob.Get(key)
	if err != nil {
		s.log.WithError(err).WithField("collection", key).Warn("storage read failed")
		return []T{}
	}
	if !ok {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.WithError(err).WithField("collection", key).Warn("corrupt collection, returning empty")
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

func writeList[T any](s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.blob.Put(key, raw)
}

// --- Trainings ---

// migrate fills the fields older snapshots may lack. Idempotent: a
// second pass over migrated data changes nothing.
func migrate(t models.Training) (models.Training, bool) {
	changed := false
	if t.AccessCode == "" {
		t.AccessCode = idgen.NewAccessCode()
		changed = true
	}
	if t.Targets == nil {
		t.Targets = []int{}
		changed = true
	}
	if t.ReportedTargets == nil {
		t.ReportedTargets = map[string]bool{}
		changed = true
	}
	if t.Facilitators == nil {
		t.Facilitators = []models.Facilitator{}
	}
	if t.FacilitatorQuestions == nil {
		t.FacilitatorQuestions = []models.Question{}
	}
	if t.ProcessQuestions == nil {
		t.ProcessQuestions = []models.Question{}
	}
	return t, changed
}

// ListTrainings returns every training, unsorted (callers sort),
// applying the migration pass and persisting it back when any record
// changed shape.
func (s *Store) ListTrainings() []models.Training {
	trainings := readList[models.Training](s, storage.KeyTrainings)
	anyChanged := false
	for i, t := range trainings {
		migrated, changed := migrate(t)
		trainings[i] = migrated
		anyChanged = anyChanged || changed
	}
	if anyChanged {
		if err := writeList(s, storage.KeyTrainings, trainings); err != nil {
			s.log.WithError(err).Warn("persisting migrated trainings failed")
		}
	}
	return trainings
}

func (s *Store) GetTrainingByID(id string) (models.Training, bool) {
	for _, t := range s.ListTrainings() {
		if t.ID == id {
			return t, true
		}
	}
	return models.Training{}, false
}

// GetTrainingByAccessCode looks a training up by its human-entry code,
// case-insensitively.
func (s *Store) GetTrainingByAccessCode(code string) (models.Training, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, t := range s.ListTrainings() {
		if t.AccessCode == code {
			return t, true
		}
	}
	return models.Training{}, false
}

// UpsertTraining replaces the training with the same id, or appends it.
// The stored reportedTargets keys always survive: the notification
// dedup ledger is monotonic, and an update can add keys but never
// erase them.
func (s *Store) UpsertTraining(t models.Training) error {
	trainings := s.ListTrainings()
	for i, existing := range trainings {
		if existing.ID != t.ID {
			continue
		}
		merged := map[string]bool{}
		for k, v := range existing.ReportedTargets {
			if v {
				merged[k] = true
			}
		}
		for k, v := range t.ReportedTargets {
			if v {
				merged[k] = true
			}
		}
		t.ReportedTargets = merged
		t, _ = migrate(t)
		trainings[i] = t
		return writeList(s, storage.KeyTrainings, trainings)
	}
	t, _ = migrate(t)
	trainings = append(trainings, t)
	return writeList(s, storage.KeyTrainings, trainings)
}

// DeleteTraining removes the training and cascades to its responses.
// The two collection rewrites are independent: if either half's stored
// data is corrupt, that half is skipped rather than aborting both.
func (s *Store) DeleteTraining(id string) error {
	var firstErr error

	raw, ok, err := s.blob.Get(storage.KeyTrainings)
	if err == nil && ok {
		var trainings []models.Training
		if uerr := json.Unmarshal(raw, &trainings); uerr != nil {
			s.log.WithError(uerr).Warn("corrupt trainings collection, skipping training delete")
		} else {
			kept := trainings[:0]
			for _, t := range trainings {
				if t.ID != id {
					kept = append(kept, t)
				}
			}
			firstErr = writeList(s, storage.KeyTrainings, kept)
		}
	} else if err != nil {
		firstErr = err
	}

	raw, ok, err = s.blob.Get(storage.KeyResponses)
	if err == nil && ok {
		var responses []models.Response
		if uerr := json.Unmarshal(raw, &responses); uerr != nil {
			s.log.WithError(uerr).Warn("corrupt responses collection, skipping response cascade")
		} else {
			kept := responses[:0]
			for _, r := range responses {
				if r.TrainingID != id {
					kept = append(kept, r)
				}
			}
			if werr := writeList(s, storage.KeyResponses, kept); werr != nil && firstErr == nil {
				firstErr = werr
			}
		}
	} else if err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// --- Responses ---

// ListResponses returns the responses belonging to one training.
func (s *Store) ListResponses(trainingID string) []models.Response {
	all := readList[models.Response](s, storage.KeyResponses)
	out := []models.Response{}
	for _, r := range all {
		if r.TrainingID == trainingID {
			out = append(out, r)
		}
	}
	return out
}

// ListAllResponses returns the whole response collection, for export.
func (s *Store) ListAllResponses() []models.Response {
	return readList[models.Response](s, storage.KeyResponses)
}

// AppendResponse appends unconditionally; responses are append-only
// and carry no uniqueness check.
func (s *Store) AppendResponse(r models.Response) error {
	all := readList[models.Response](s, storage.KeyResponses)
	all = append(all, r)
	return writeList(s, storage.KeyResponses, all)
}

// --- Global questions ---

// ListGlobalQuestions returns the template library, seeding the
// built-in defaults the first time the collection is touched.
func (s *Store) ListGlobalQuestions() []models.GlobalQuestion {
	_, ok, err := s.blob.Get(storage.KeyGlobalQuestions)
	if err == nil && !ok {
		seed := DefaultGlobalQuestions()
		if werr := writeList(s, storage.KeyGlobalQuestions, seed); werr != nil {
			s.log.WithError(werr).Warn("seeding global questions failed")
		}
		return seed
	}
	return readList[models.GlobalQuestion](s, storage.KeyGlobalQuestions)
}

func (s *Store) UpsertGlobalQuestion(q models.GlobalQuestion) error {
	questions := s.ListGlobalQuestions()
	for i, existing := range questions {
		if existing.ID == q.ID {
			questions[i] = q
			return writeList(s, storage.KeyGlobalQuestions, questions)
		}
	}
	questions = append(questions, q)
	return writeList(s, storage.KeyGlobalQuestions, questions)
}

func (s *Store) DeleteGlobalQuestion(id string) error {
	questions := s.ListGlobalQuestions()
	kept := questions[:0]
	for _, q := range questions {
		if q.ID != id {
			kept = append(kept, q)
		}
	}
	return writeList(s, storage.KeyGlobalQuestions, kept)
}

// --- Contacts ---

func (s *Store) ListContacts() []models.Contact {
	return readList[models.Contact](s, storage.KeyContacts)
}

func (s *Store) UpsertContact(c models.Contact) error {
	contacts := s.ListContacts()
	for i, existing := range contacts {
		if existing.ID == c.ID {
			contacts[i] = c
			return writeList(s, storage.KeyContacts, contacts)
		}
	}
	contacts = append(contacts, c)
	return writeList(s, storage.KeyContacts, contacts)
}

func (s *Store) DeleteContact(id string) error {
	contacts := s.ListContacts()
	kept := contacts[:0]
	for _, c := range contacts {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return writeList(s, storage.KeyContacts, kept)
}

// --- Settings ---

// GetSettings returns stored settings shallow-merged over the
// hard-coded defaults, so fields added after a snapshot was written
// fall back instead of breaking old saves.
func (s *Store) GetSettings() models.AppSettings {
	settings := DefaultSettings()
	raw, ok, err := s.blob.Get(storage.KeySettings)
	if err != nil {
		s.log.WithError(err).Warn("storage read failed for settings")
		return settings
	}
	if !ok {
		return settings
	}
	// Unmarshal into the defaults: fields present in storage override,
	// absent fields keep their default.
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.log.WithError(err).Warn("corrupt settings, returning defaults")
		return DefaultSettings()
	}
	return settings
}

func (s *Store) SaveSettings(settings models.AppSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.blob.Put(storage.KeySettings, raw)
}

// ResetAll clears every collection unconditionally.
func (s *Store) ResetAll() error {
	return s.blob.Reset()
}

// ReplaceAll overwrites every collection wholesale. Used by backup
// restore; there is no merging with pre-existing data.
func (s *Store) ReplaceAll(trainings []models.Training, responses []models.Response, questions []models.GlobalQuestion, contacts []models.Contact, settings models.AppSettings) error {
	if err := writeList(s, storage.KeyTrainings, trainings); err != nil {
		return err
	}
	if err := writeList(s, storage.KeyResponses, responses); err != nil {
		return err
	}
	if err := writeList(s, storage.KeyGlobalQuestions, questions); err != nil {
		return err
	}
	if err := writeList(s, storage.KeyContacts, contacts); err != nil {
		return err
	}
	return s.SaveSettings(settings)
}
