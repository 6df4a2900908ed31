package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adityarw/simep/internal/models"
)

// NotifierStore is the slice of the record store the trigger needs.
type NotifierStore interface {
	GetTrainingByID(id string) (models.Training, bool)
	ListResponses(trainingID string) []models.Response
	GetSettings() models.AppSettings
	UpsertTraining(t models.Training) error
}

// MessageSender delivers a composed message to one destination. A nil
// error means the gateway accepted the message; anything else leaves
// the dedup flag unset so the same count stays eligible for a retry.
type MessageSender interface {
	Send(ctx context.Context, settings models.AppSettings, target, message string) error
}

// Outcome names the trigger's terminal state for one evaluation.
type Outcome string

const (
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeNoDestination  Outcome = "no_destination"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeSent           Outcome = "sent"
	OutcomeFailed         Outcome = "failed"
)

// Notifier watches facilitator response counts against a training's
// configured targets and sends an automated report when a threshold is
// newly reached. Each (facilitator, count) pair fires at most once;
// the reportedTargets ledger persisted through the store is the proof.
type Notifier struct {
	store  NotifierStore
	sender MessageSender
	log    *logrus.Logger
}

func NewNotifier(store NotifierStore, sender MessageSender, log *logrus.Logger) *Notifier {
	if log == nil {
		log = logrus.New()
	}
	return &Notifier{store: store, sender: sender, log: log}
}

// matchesFacilitator keeps the legacy tolerance: exact equality first,
// then substring containment for minor name variations. Renaming a
// facilitator silently stops matching old responses; known fragility,
// kept pending a product decision.
func matchesFacilitator(targetName, facilitatorName string) bool {
	if targetName == "" {
		return false
	}
	return targetName == facilitatorName || strings.Contains(targetName, facilitatorName)
}

// CheckAndSend re-evaluates the trigger for one facilitator. Called
// after every facilitator response write and from the manual re-send
// path. All failures are logged and absorbed here; the response write
// that triggered the evaluation is never blocked or rolled back.
func (n *Notifier) CheckAndSend(ctx context.Context, trainingID, facilitatorID string) Outcome {
	training, ok := n.store.GetTrainingByID(trainingID)
	if !ok || len(training.Targets) == 0 {
		return OutcomeBelowThreshold
	}

	var facilitator *models.Facilitator
	for i := range training.Facilitators {
		if training.Facilitators[i].ID == facilitatorID {
			facilitator = &training.Facilitators[i]
			break
		}
	}
	if facilitator == nil || facilitator.WhatsApp == "" {
		n.log.WithFields(logrus.Fields{
			"training_id": trainingID,
			"facilitator": facilitatorID,
		}).Info("auto report: facilitator missing or has no destination")
		return OutcomeNoDestination
	}

	matching := []models.Response{}
	for _, r := range n.store.ListResponses(trainingID) {
		if r.Type == models.ResponseFacilitator && matchesFacilitator(r.TargetName, facilitator.Name) {
			matching = append(matching, r)
		}
	}
	count := len(matching)
	if !training.HasTarget(count) {
		return OutcomeBelowThreshold
	}

	reportKey := fmt.Sprintf("%s_%d", facilitator.ID, count)
	if training.ReportedTargets[reportKey] {
		n.log.WithFields(logrus.Fields{
			"training_id": trainingID,
			"facilitator": facilitator.Name,
			"count":       count,
		}).Info("auto report: target already reported, skipping")
		return OutcomeDuplicate
	}

	settings := n.store.GetSettings()
	message := ComposeReportMessage(settings, training, *facilitator, matching)

	if err := n.sender.Send(ctx, settings, facilitator.WhatsApp, message); err != nil {
		// Flag stays unset: the same count remains eligible if the
		// trigger runs again.
		n.log.WithError(err).WithFields(logrus.Fields{
			"training_id": trainingID,
			"facilitator": facilitator.Name,
			"count":       count,
		}).Error("auto report: delivery failed")
		return OutcomeFailed
	}

	if training.ReportedTargets == nil {
		training.ReportedTargets = map[string]bool{}
	}
	training.ReportedTargets[reportKey] = true
	if err := n.store.UpsertTraining(training); err != nil {
		n.log.WithError(err).Warn("auto report: persisting dedup flag failed")
	}
	n.log.WithFields(logrus.Fields{
		"training_id": trainingID,
		"facilitator": facilitator.Name,
		"count":       count,
	}).Info("auto report: sent")
	return OutcomeSent
}

// CheckAll re-evaluates every facilitator of a training at the current
// response counts. This is the manual re-send affordance for targets
// whose delivery failed transiently.
func (n *Notifier) CheckAll(ctx context.Context, trainingID string) map[string]Outcome {
	training, ok := n.store.GetTrainingByID(trainingID)
	if !ok {
		return nil
	}
	outcomes := map[string]Outcome{}
	for _, f := range training.Facilitators {
		outcomes[f.ID] = n.CheckAndSend(ctx, trainingID, f.ID)
	}
	return outcomes
}

// ComposeReportMessage builds the automated report text. Deterministic
// given the training, facilitator, matching responses and settings.
func ComposeReportMessage(settings models.AppSettings, training models.Training, facilitator models.Facilitator, responses []models.Response) string {
	stats := CalculateStats(training.FacilitatorQuestions, responses)
	overall := CalculateOverallStats(training.FacilitatorQuestions, responses)

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", settings.WAHeader)
	b.WriteString("--------------------------\n")
	fmt.Fprintf(&b, "Yth. %s\n", facilitator.Name)
	fmt.Fprintf(&b, "Pelatihan: %s\n", training.Title)
	fmt.Fprintf(&b, "Jumlah Responden: %d orang\n\n", len(responses))

	b.WriteString("*Ringkasan Nilai:*\n")
	for _, st := range stats {
		if st.Type == models.QuestionText {
			continue
		}
		fmt.Fprintf(&b, "- %s: *%s*\n", st.Label, st.Display())
	}

	b.WriteString("\n*Rata-rata Keseluruhan:*\n")
	if overall.HasStar {
		fmt.Fprintf(&b, "⭐ Bintang: *%s/5.0*\n", overall.StarAvg)
	}
	if overall.HasSlider {
		fmt.Fprintf(&b, "📊 Skala: *%s/100*\n", overall.SliderAvg)
	}

	fmt.Fprintf(&b, "\n%s\n", settings.WAFooter)
	b.WriteString("(Sistem Evaluasi Pelatihan)")
	return b.String()
}
