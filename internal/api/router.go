// Package api exposes the record store, aggregation engine and backup
// codec over HTTP. The respondent surface (access-code lookup and
// response submission) is public; everything else requires an admin
// token.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adityarw/simep/internal/idgen"
	"github.com/adityarw/simep/internal/middleware"
	"github.com/adityarw/simep/internal/models"
	"github.com/adityarw/simep/internal/services"
	"github.com/adityarw/simep/internal/store"
)

type Router struct {
	store     *store.Store
	trainings *services.TrainingService
	notifier  *services.Notifier
	backup    *services.Backup
	auth      *services.AuthService
	log       *logrus.Logger
}

func NewRouter(st *store.Store, trainings *services.TrainingService, notifier *services.Notifier, backup *services.Backup, auth *services.AuthService, log *logrus.Logger) *Router {
	if log == nil {
		log = logrus.New()
	}
	return &Router{store: st, trainings: trainings, notifier: notifier, backup: backup, auth: auth, log: log}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/login", rt.handleLogin)        // POST
	mux.HandleFunc("/api/trainings", rt.handleTrainings)      // GET, POST
	mux.HandleFunc("/api/trainings/", rt.handleTrainingScoped)
	mux.HandleFunc("/api/questions", rt.handleQuestions)      // GET, POST
	mux.HandleFunc("/api/questions/", rt.handleQuestionByID)  // DELETE
	mux.HandleFunc("/api/contacts", rt.handleContacts)        // GET, POST
	mux.HandleFunc("/api/contacts/", rt.handleContactByID)    // DELETE
	mux.HandleFunc("/api/settings", rt.handleSettings)        // GET, PUT
	// The destructive surface sits behind the middleware guard rather
	// than an in-handler check.
	mux.Handle("/api/backup", middleware.RequireAdmin(http.HandlerFunc(rt.handleBackupExport)))      // GET
	mux.Handle("/api/backup/import", middleware.RequireAdmin(http.HandlerFunc(rt.handleBackupImport))) // POST
	mux.Handle("/api/reset", middleware.RequireAdmin(http.HandlerFunc(rt.handleReset)))              // POST
}

// readBody reads a bounded request body. Backup documents are the
// largest payload this API accepts.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, 32<<20))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusInternalServerError
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusUnprocessableEntity
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict:
			status = http.StatusConflict
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]any{"error": se.Message, "code": se.Code})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
}

// requireAdmin answers false (and writes 401) for requests without
// admin claims.
func (rt *Router) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !middleware.IsAdmin(r.Context()) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// POST /api/admin/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := rt.auth.Login(body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET/POST /api/trainings
func (rt *Router) handleTrainings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !rt.requireAdmin(w, r) {
			return
		}
		trainings := rt.store.ListTrainings()
		// Newest first; the store itself returns unsorted.
		sort.Slice(trainings, func(i, j int) bool { return trainings[i].CreatedAt.After(trainings[j].CreatedAt) })
		writeJSON(w, http.StatusOK, trainings)
	case http.MethodPost:
		if !rt.requireAdmin(w, r) {
			return
		}
		rt.saveTraining(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rt *Router) saveTraining(w http.ResponseWriter, r *http.Request) {
	var t models.Training
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"
	saved, err := rt.trainings.Save(t, force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Routes under /api/trainings/:
//
//	GET    /api/trainings/code/{code}       public respondent lookup
//	GET    /api/trainings/{id}              admin
//	PUT    /api/trainings/{id}              admin
//	DELETE /api/trainings/{id}              admin
//	GET    /api/trainings/{id}/responses    admin
//	POST   /api/trainings/{id}/responses    public respondent submit
//	GET    /api/trainings/{id}/stats        admin
//	GET    /api/trainings/{id}/export.csv   admin
//	POST   /api/trainings/{id}/notify       admin manual re-send
func (rt *Router) handleTrainingScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/trainings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	if len(parts) == 2 && parts[0] == "code" {
		rt.handleTrainingByCode(w, r, parts[1])
		return
	}
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		rt.handleTrainingByID(w, r, id)
		return
	}
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	switch parts[1] {
	case "responses":
		rt.handleResponses(w, r, id)
	case "stats":
		rt.handleStats(w, r, id)
	case "export.csv":
		rt.handleExportCSV(w, r, id)
	case "notify":
		rt.handleNotify(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// respondentTraining is the public projection of a training: enough to
// render the evaluation form, without the notification ledger.
type respondentTraining struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	Description           string               `json:"description"`
	StartDate             string               `json:"startDate"`
	EndDate               string               `json:"endDate"`
	ProcessEvaluationDate string               `json:"processEvaluationDate,omitempty"`
	Facilitators          []models.Facilitator `json:"facilitators"`
	FacilitatorQuestions  []models.Question    `json:"facilitatorQuestions"`
	ProcessQuestions      []models.Question    `json:"processQuestions"`
}

func (rt *Router) handleTrainingByCode(w http.ResponseWriter, r *http.Request, code string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t, ok := rt.store.GetTrainingByAccessCode(code)
	if !ok {
		http.Error(w, "training not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, respondentTraining{
		ID:                    t.ID,
		Title:                 t.Title,
		Description:           t.Description,
		StartDate:             t.StartDate,
		EndDate:               t.EndDate,
		ProcessEvaluationDate: t.ProcessEvaluationDate,
		Facilitators:          t.Facilitators,
		FacilitatorQuestions:  t.FacilitatorQuestions,
		ProcessQuestions:      t.ProcessQuestions,
	})
}

func (rt *Router) handleTrainingByID(w http.ResponseWriter, r *http.Request, id string) {
	if !rt.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, ok := rt.store.GetTrainingByID(id)
		if !ok {
			http.Error(w, "training not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPut:
		rt.saveTraining(w, r)
	case http.MethodDelete:
		if err := rt.trainings.Delete(id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rt *Router) handleResponses(w http.ResponseWriter, r *http.Request, trainingID string) {
	switch r.Method {
	case http.MethodGet:
		if !rt.requireAdmin(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, rt.store.ListResponses(trainingID))
	case http.MethodPost:
		rt.submitResponse(w, r, trainingID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rt *Router) submitResponse(w http.ResponseWriter, r *http.Request, trainingID string) {
	training, ok := rt.store.GetTrainingByID(trainingID)
	if !ok {
		http.Error(w, "training not found", http.StatusNotFound)
		return
	}
	var resp models.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if resp.Type != models.ResponseFacilitator && resp.Type != models.ResponseProcess {
		http.Error(w, "type must be facilitator or process", http.StatusBadRequest)
		return
	}
	if len(resp.Answers) == 0 {
		http.Error(w, "answers required", http.StatusBadRequest)
		return
	}
	resp.ID = idgen.NewID()
	resp.TrainingID = trainingID
	resp.CreatedAt = time.Now().UTC()
	if err := rt.store.AppendResponse(resp); err != nil {
		writeError(w, err)
		return
	}

	if resp.Type == models.ResponseFacilitator {
		rt.dispatchTrigger(training, resp.TargetName)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// dispatchTrigger re-evaluates the notification trigger for every
// facilitator the submitted response targets. Detached: delivery
// failures are logged inside the notifier and never surface to the
// respondent's write.
func (rt *Router) dispatchTrigger(training models.Training, targetName string) {
	ids := []string{}
	for _, f := range training.Facilitators {
		if f.Name != "" && (targetName == f.Name || strings.Contains(targetName, f.Name)) {
			ids = append(ids, f.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, id := range ids {
			rt.notifier.CheckAndSend(ctx, training.ID, id)
		}
	}()
}

func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request, trainingID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !rt.requireAdmin(w, r) {
		return
	}
	training, ok := rt.store.GetTrainingByID(trainingID)
	if !ok {
		http.Error(w, "training not found", http.StatusNotFound)
		return
	}
	responses := rt.store.ListResponses(trainingID)
	writeJSON(w, http.StatusOK, services.ProcessDataForExport(training, responses))
}

func (rt *Router) handleExportCSV(w http.ResponseWriter, r *http.Request, trainingID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !rt.requireAdmin(w, r) {
		return
	}
	training, ok := rt.store.GetTrainingByID(trainingID)
	if !ok {
		http.Error(w, "training not found", http.StatusNotFound)
		return
	}
	out, err := services.ExportRecapCSV(training, rt.store.ListResponses(trainingID))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rekap_`+trainingID+`.csv"`)
	_, _ = w.Write(out)
}

func (rt *Router) handleNotify(w http.ResponseWriter, r *http.Request, trainingID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !rt.requireAdmin(w, r) {
		return
	}
	if _, ok := rt.store.GetTrainingByID(trainingID); !ok {
		http.Error(w, "training not found", http.StatusNotFound)
		return
	}
	outcomes := rt.notifier.CheckAll(r.Context(), trainingID)
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

// GET/POST /api/questions
func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if !rt.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.store.ListGlobalQuestions())
	case http.MethodPost:
		var q models.GlobalQuestion
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if q.Label == "" {
			http.Error(w, "label required", http.StatusBadRequest)
			return
		}
		if q.Category != models.CategoryFacilitator && q.Category != models.CategoryProcess {
			http.Error(w, "category must be facilitator or process", http.StatusBadRequest)
			return
		}
		if q.ID == "" {
			q.ID = idgen.NewID()
		}
		if err := rt.store.UpsertGlobalQuestion(q); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// DELETE /api/questions/{id}
func (rt *Router) handleQuestionByID(w http.ResponseWriter, r *http.Request) {
	if !rt.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/questions/"), "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if err := rt.store.DeleteGlobalQuestion(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET/POST /api/contacts
func (rt *Router) handleContacts(w http.ResponseWriter, r *http.Request) {
	if !rt.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.store.ListContacts())
	case http.MethodPost:
		var c models.Contact
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(c.Name) == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		if c.ID == "" {
			c.ID = idgen.NewID()
		}
		if err := rt.store.UpsertContact(c); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// DELETE /api/contacts/{id}
func (rt *Router) handleContactByID(w http.ResponseWriter, r *http.Request) {
	if !rt.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/contacts/"), "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if err := rt.store.DeleteContact(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET/PUT /api/settings
func (rt *Router) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !rt.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.store.GetSettings())
	case http.MethodPut:
		var s models.AppSettings
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := rt.store.SaveSettings(s); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/backup
func (rt *Router) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	doc, err := rt.backup.Export()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="backup.json"`)
	_, _ = w.Write(doc)
}

// POST /api/backup/import
func (rt *Router) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.backup.Import(body); err != nil {
		rt.log.WithError(err).Warn("backup import rejected")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /api/reset
func (rt *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := rt.store.ResetAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
