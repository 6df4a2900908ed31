package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adityarw/simep/internal/models"
	"github.com/adityarw/simep/internal/store"
)

// BackupVersion tags exported documents; kept at the legacy value so
// backups made by older clients import cleanly.
const BackupVersion = "1.0"

// BackupDocument is the single portable snapshot of the whole store.
type BackupDocument struct {
	Trainings       []models.Training       `json:"trainings"`
	Responses       []models.Response       `json:"responses"`
	GlobalQuestions []models.GlobalQuestion `json:"globalQuestions"`
	Contacts        []models.Contact        `json:"contacts"`
	Settings        models.AppSettings      `json:"settings"`
	ExportedAt      time.Time               `json:"exportedAt"`
	Version         string                  `json:"version"`
}

// ErrInvalidBackup rejects documents missing the required collections.
var ErrInvalidBackup = errors.New("invalid backup document")

// BackupStore is the slice of the record store the codec needs.
type BackupStore interface {
	ListTrainings() []models.Training
	ListAllResponses() []models.Response
	ListGlobalQuestions() []models.GlobalQuestion
	ListContacts() []models.Contact
	GetSettings() models.AppSettings
	ReplaceAll(trainings []models.Training, responses []models.Response, questions []models.GlobalQuestion, contacts []models.Contact, settings models.AppSettings) error
}

// Backup serializes and restores the entire store as one document.
type Backup struct {
	store BackupStore
	now   func() time.Time
}

func NewBackup(st BackupStore) *Backup {
	return &Backup{store: st, now: time.Now}
}

// Export assembles every collection plus version and timestamp into a
// portable JSON document. Reads only; no side effects on storage
// beyond the store's own migration-on-read.
func (b *Backup) Export() ([]byte, error) {
	doc := BackupDocument{
		Trainings:       b.store.ListTrainings(),
		Responses:       b.store.ListAllResponses(),
		GlobalQuestions: b.store.ListGlobalQuestions(),
		Contacts:        b.store.ListContacts(),
		Settings:        b.store.GetSettings(),
		ExportedAt:      b.now().UTC(),
		Version:         BackupVersion,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import validates and restores a backup document, replacing every
// collection wholesale. The trainings collection and settings record
// must be present; absent optional collections fall back to empty (or
// the default question seed). On any validation failure existing
// storage is left untouched.
func (b *Backup) Import(data []byte) error {
	// Decode the envelope with raw members so a missing key is
	// distinguishable from an empty value.
	var envelope struct {
		Trainings       json.RawMessage `json:"trainings"`
		Responses       json.RawMessage `json:"responses"`
		GlobalQuestions json.RawMessage `json:"globalQuestions"`
		Contacts        json.RawMessage `json:"contacts"`
		Settings        json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if len(envelope.Trainings) == 0 || len(envelope.Settings) == 0 {
		return fmt.Errorf("%w: trainings and settings are required", ErrInvalidBackup)
	}

	var doc BackupDocument
	if err := json.Unmarshal(envelope.Trainings, &doc.Trainings); err != nil {
		return fmt.Errorf("%w: trainings: %v", ErrInvalidBackup, err)
	}
	if err := json.Unmarshal(envelope.Settings, &doc.Settings); err != nil {
		return fmt.Errorf("%w: settings: %v", ErrInvalidBackup, err)
	}
	if len(envelope.Responses) > 0 {
		if err := json.Unmarshal(envelope.Responses, &doc.Responses); err != nil {
			return fmt.Errorf("%w: responses: %v", ErrInvalidBackup, err)
		}
	}
	if len(envelope.GlobalQuestions) > 0 {
		if err := json.Unmarshal(envelope.GlobalQuestions, &doc.GlobalQuestions); err != nil {
			return fmt.Errorf("%w: global questions: %v", ErrInvalidBackup, err)
		}
	}
	if len(envelope.Contacts) > 0 {
		if err := json.Unmarshal(envelope.Contacts, &doc.Contacts); err != nil {
			return fmt.Errorf("%w: contacts: %v", ErrInvalidBackup, err)
		}
	}
	if doc.Responses == nil {
		doc.Responses = []models.Response{}
	}
	if doc.GlobalQuestions == nil {
		doc.GlobalQuestions = store.DefaultGlobalQuestions()
	}
	if doc.Contacts == nil {
		doc.Contacts = []models.Contact{}
	}
	return b.store.ReplaceAll(doc.Trainings, doc.Responses, doc.GlobalQuestions, doc.Contacts, doc.Settings)
}
