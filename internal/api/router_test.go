package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/adityarw/simep/internal/middleware"
	"github.com/adityarw/simep/internal/models"
	"github.com/adityarw/simep/internal/services"
	"github.com/adityarw/simep/internal/storage"
	"github.com/adityarw/simep/internal/store"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	calls int
}

func (s *recordingSender) Send(_ context.Context, _ models.AppSettings, target, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.sent = append(s.sent, target+": "+message)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	srv    *httptest.Server
	store  *store.Store
	sender *recordingSender
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	blob, err := storage.Open(storage.DriverMemory, "")
	require.NoError(t, err)
	st := store.New(blob, log)

	sender := &recordingSender{}
	notifier := services.NewNotifier(st, sender, log)
	backup := services.NewBackup(st)
	trainings := services.NewTrainingService(st)

	hash, err := services.HashPassword("letmein")
	require.NoError(t, err)
	auth := services.NewAuthService(hash, middleware.SignToken)

	rt := NewRouter(st, trainings, notifier, backup, auth, log)
	mux := http.NewServeMux()
	rt.Register(mux)

	srv := httptest.NewServer(middleware.WithAuth(mux))
	t.Cleanup(srv.Close)

	token, err := middleware.SignToken("admin", time.Hour)
	require.NoError(t, err)

	return &fixture{srv: srv, store: st, sender: sender, token: token}
}

func (f *fixture) do(t *testing.T, method, path string, body any, admin bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if admin {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLoginIssuesToken(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "letmein"}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[services.AuthResult](t, resp)
	require.NotEmpty(t, res.Token)

	resp = f.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "nope"}, false)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesRejectAnonymous(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/trainings"},
		{http.MethodGet, "/api/questions"},
		{http.MethodGet, "/api/contacts"},
		{http.MethodGet, "/api/settings"},
		{http.MethodGet, "/api/backup"},
		{http.MethodPost, "/api/reset"},
	} {
		resp := f.do(t, tc.method, tc.path, nil, false)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestTrainingCRUD(t *testing.T) {
	f := newFixture(t)

	create := models.Training{
		Title:     "Pelatihan Kader",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-06",
	}
	resp := f.do(t, http.MethodPost, "/api/trainings", create, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[models.Training](t, resp)
	require.NotEmpty(t, saved.ID)
	require.Len(t, saved.AccessCode, 5)

	// Duplicate title conflicts without force.
	resp = f.do(t, http.MethodPost, "/api/trainings", create, true)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/trainings?force=1", create, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/trainings", nil, true)
	list := decode[[]models.Training](t, resp)
	require.Len(t, list, 2)

	saved.Description = "Angkatan II"
	resp = f.do(t, http.MethodPut, "/api/trainings/"+saved.ID, saved, true)
	updated := decode[models.Training](t, resp)
	require.Equal(t, "Angkatan II", updated.Description)

	resp = f.do(t, http.MethodDelete, "/api/trainings/"+saved.ID, nil, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/trainings/"+saved.ID, nil, true)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrainingValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/trainings", models.Training{Title: "   "}, true)
	resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRespondentLookupByCode(t *testing.T) {
	f := newFixture(t)

	created := decode[models.Training](t, f.do(t, http.MethodPost, "/api/trainings", models.Training{
		Title:     "Pelatihan Gizi",
		StartDate: "2026-04-01",
		EndDate:   "2026-04-03",
		Targets:   []int{5},
	}, true))

	// Lookup is public and case-insensitive.
	resp := f.do(t, http.MethodGet, "/api/trainings/code/"+strings.ToLower(created.AccessCode), nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pub := decode[map[string]any](t, resp)
	require.Equal(t, created.ID, pub["id"])
	// The notification ledger stays private.
	require.NotContains(t, pub, "reportedTargets")
	require.NotContains(t, pub, "accessCode")

	resp = f.do(t, http.MethodGet, "/api/trainings/code/ZZZZZ", nil, false)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitResponseTriggersNotification(t *testing.T) {
	f := newFixture(t)

	created := decode[models.Training](t, f.do(t, http.MethodPost, "/api/trainings", models.Training{
		Title:     "Pelatihan PMBA",
		StartDate: "2026-05-04",
		EndDate:   "2026-05-08",
		Targets:   []int{2},
		Facilitators: []models.Facilitator{
			{ID: "f1", Name: "Budi", WhatsApp: "0812000111"},
		},
		FacilitatorQuestions: []models.Question{
			{ID: "q1", Label: "Penguasaan materi", Type: models.QuestionStar},
		},
	}, true))

	submit := func() {
		resp := f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/responses", map[string]any{
			"type":       "facilitator",
			"targetName": "Budi",
			"answers":    map[string]any{"q1": 5},
		}, false)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	submit()
	submit()

	// Delivery is detached from the respondent's write.
	require.Eventually(t, func() bool { return f.sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// A third response is past the only target; nothing new fires.
	submit()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, f.sender.count())

	resp := f.do(t, http.MethodGet, "/api/trainings/"+created.ID+"/responses", nil, true)
	responses := decode[[]models.Response](t, resp)
	require.Len(t, responses, 3)
}

func TestSubmitResponseValidation(t *testing.T) {
	f := newFixture(t)

	created := decode[models.Training](t, f.do(t, http.MethodPost, "/api/trainings", models.Training{
		Title: "Pelatihan X", StartDate: "2026-01-05", EndDate: "2026-01-06",
	}, true))

	resp := f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/responses", map[string]any{
		"type": "bogus", "answers": map[string]any{"q1": 1},
	}, false)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/responses", map[string]any{
		"type": "process",
	}, false)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/trainings/missing/responses", map[string]any{
		"type": "process", "answers": map[string]any{"q1": 1},
	}, false)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsAndExport(t *testing.T) {
	f := newFixture(t)

	created := decode[models.Training](t, f.do(t, http.MethodPost, "/api/trainings", models.Training{
		Title:     "Pelatihan Statistik",
		StartDate: "2026-06-01",
		EndDate:   "2026-06-02",
		Facilitators: []models.Facilitator{
			{ID: "f1", Name: "Sari", Subject: "Materi A"},
		},
		FacilitatorQuestions: []models.Question{
			{ID: "q1", Label: "Penyampaian", Type: models.QuestionStar},
		},
		ProcessQuestions: []models.Question{
			{ID: "p1", Label: "Konsumsi", Type: models.QuestionSlider},
		},
	}, true))

	for _, score := range []int{4, 5} {
		resp := f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/responses", map[string]any{
			"type": "facilitator", "targetName": "Sari",
			"answers": map[string]any{"q1": score},
		}, false)
		resp.Body.Close()
	}
	resp := f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/responses", map[string]any{
		"type": "process", "answers": map[string]any{"p1": 80},
	}, false)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/trainings/"+created.ID+"/stats", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode[services.ExportData](t, resp)
	require.Equal(t, "4.50", data.Facilitators["Sari"].Averages["q1"])
	require.Equal(t, "80.00", data.Process.Averages["p1"])

	resp = f.do(t, http.MethodGet, "/api/trainings/"+created.ID+"/export.csv", nil, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Sari")
	require.Contains(t, buf.String(), "4.50")
}

func TestManualNotify(t *testing.T) {
	f := newFixture(t)

	created := decode[models.Training](t, f.do(t, http.MethodPost, "/api/trainings", models.Training{
		Title:     "Pelatihan Manual",
		StartDate: "2026-07-01",
		EndDate:   "2026-07-02",
		Targets:   []int{1},
		Facilitators: []models.Facilitator{
			{ID: "f1", Name: "Andi", WhatsApp: "0812999888"},
		},
	}, true))

	require.NoError(t, f.store.AppendResponse(models.Response{
		ID: "r1", TrainingID: created.ID, Type: models.ResponseFacilitator,
		TargetName: "Andi", Answers: map[string]any{"q": 5.0},
	}))

	resp := f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/notify", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]map[string]services.Outcome](t, resp)
	require.Equal(t, services.OutcomeSent, out["outcomes"]["f1"])

	// Second manual pass is a no-op thanks to the ledger.
	resp = f.do(t, http.MethodPost, "/api/trainings/"+created.ID+"/notify", nil, true)
	out = decode[map[string]map[string]services.Outcome](t, resp)
	require.Equal(t, services.OutcomeDuplicate, out["outcomes"]["f1"])
	require.Equal(t, 1, f.sender.count())
}

func TestQuestionAndContactCRUD(t *testing.T) {
	f := newFixture(t)

	// Defaults are seeded on first read.
	resp := f.do(t, http.MethodGet, "/api/questions", nil, true)
	seeded := decode[[]models.GlobalQuestion](t, resp)
	require.NotEmpty(t, seeded)

	q := models.GlobalQuestion{
		Question: models.Question{Label: "Kejelasan materi", Type: models.QuestionStar},
		Category: models.CategoryFacilitator,
	}
	resp = f.do(t, http.MethodPost, "/api/questions", q, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	savedQ := decode[models.GlobalQuestion](t, resp)
	require.NotEmpty(t, savedQ.ID)

	resp = f.do(t, http.MethodDelete, "/api/questions/"+savedQ.ID, nil, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/contacts", models.Contact{Name: "Bu Rina", WhatsApp: "0813"}, true)
	savedC := decode[models.Contact](t, resp)
	require.NotEmpty(t, savedC.ID)

	resp = f.do(t, http.MethodGet, "/api/contacts", nil, true)
	contacts := decode[[]models.Contact](t, resp)
	require.Len(t, contacts, 1)

	resp = f.do(t, http.MethodDelete, "/api/contacts/"+savedC.ID, nil, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/settings", nil, true)
	settings := decode[models.AppSettings](t, resp)
	require.NotEmpty(t, settings.WABaseURL)

	settings.WAAPIKey = "secret-key"
	resp = f.do(t, http.MethodPut, "/api/settings", settings, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/settings", nil, true)
	settings = decode[models.AppSettings](t, resp)
	require.Equal(t, "secret-key", settings.WAAPIKey)
}

func TestBackupExportImportReset(t *testing.T) {
	f := newFixture(t)

	created := decode[models.Training](t, f.do(t, http.MethodPost, "/api/trainings", models.Training{
		Title: "Pelatihan Cadangan", StartDate: "2026-08-03", EndDate: "2026-08-04",
	}, true))

	resp := f.do(t, http.MethodGet, "/api/backup", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc bytes.Buffer
	_, err := doc.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	resp = f.do(t, http.MethodPost, "/api/reset", nil, true)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, f.store.ListTrainings())

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/backup/import", &doc)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	result := decode[map[string]any](t, importResp)
	require.Equal(t, true, result["success"])

	restored, ok := f.store.GetTrainingByID(created.ID)
	require.True(t, ok)
	require.Equal(t, "Pelatihan Cadangan", restored.Title)

	// Garbage documents are rejected without touching storage.
	resp = f.do(t, http.MethodPost, "/api/backup/import", map[string]any{"bogus": 1}, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotEmpty(t, f.store.ListTrainings())
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/admin/login"},
		{http.MethodPut, "/api/trainings"},
		{http.MethodPost, "/api/backup"},
	} {
		resp := f.do(t, tc.method, tc.path, nil, true)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode,
			fmt.Sprintf("%s %s", tc.method, tc.path))
	}
}
