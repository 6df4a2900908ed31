package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/adityarw/simep/internal/api"
	"github.com/adityarw/simep/internal/config"
	"github.com/adityarw/simep/internal/middleware"
	"github.com/adityarw/simep/internal/notify"
	"github.com/adityarw/simep/internal/services"
	"github.com/adityarw/simep/internal/storage"
	"github.com/adityarw/simep/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	blob, err := storage.Open(storage.Driver(cfg.Storage.Driver), cfg.Storage.Path)
	if err != nil {
		log.WithError(err).Fatal("open storage")
	}
	defer blob.Close()

	st := store.New(blob, log)
	sender := notify.NewFonnteClient()
	notifier := services.NewNotifier(st, sender, log)
	backup := services.NewBackup(st)
	trainings := services.NewTrainingService(st)

	hash, err := services.HashPassword(cfg.Admin.Password)
	if err != nil {
		log.WithError(err).Fatal("hash admin password")
	}
	auth := services.NewAuthService(hash, middleware.SignToken)

	mux := http.NewServeMux()
	api.NewRouter(st, trainings, notifier, backup, auth, log).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":   true,
			"name": "SIMEP API",
		})
	})

	// Static admin/respondent frontend, when bundled alongside the API.
	if staticDir := os.Getenv("SIMEP_STATIC_DIR"); staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	handler := middleware.RequestLog(log,
		middleware.CORS(
			middleware.SecureHeaders(
				middleware.NoStore(
					middleware.WithAuth(mux)))))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.WithFields(logrus.Fields{
		"addr":   cfg.Server.Addr,
		"driver": cfg.Storage.Driver,
	}).Info("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
}
