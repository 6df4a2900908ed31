package store

import "github.com/adityarw/simep/internal/models"

// DefaultGlobalQuestions returns the built-in template library seeded
// on first use. Labels stay in Indonesian to match existing
// deployments and snapshots.
func DefaultGlobalQuestions() []models.GlobalQuestion {
	return []models.GlobalQuestion{
		{Question: models.Question{ID: "def-1", Label: "Penguasaan Materi", Type: models.QuestionStar}, Category: models.CategoryFacilitator, IsDefault: true},
		{Question: models.Question{ID: "def-2", Label: "Metode Penyampaian", Type: models.QuestionStar}, Category: models.CategoryFacilitator, IsDefault: true},
		{Question: models.Question{ID: "def-3", Label: "Interaksi dengan Peserta", Type: models.QuestionSlider}, Category: models.CategoryFacilitator, IsDefault: true},
		{Question: models.Question{ID: "def-4", Label: "Kenyamanan Ruangan", Type: models.QuestionStar}, Category: models.CategoryProcess, IsDefault: true},
		{Question: models.Question{ID: "def-5", Label: "Kualitas Konsumsi", Type: models.QuestionStar}, Category: models.CategoryProcess, IsDefault: true},
	}
}

// DefaultSettings returns the hard-coded settings record. The gateway
// credential ships empty; operators set it through the settings
// endpoint or environment.
func DefaultSettings() models.AppSettings {
	return models.AppSettings{
		WAAPIKey:                   "",
		WABaseURL:                  "https://api.fonnte.com/send",
		WAHeader:                   "SIMEP - Laporan Evaluasi Otomatis-UPT LATKESMAS MURNAJATI",
		WAFooter:                   "Terima kasih telah memberikan yang terbaik!",
		DefaultTrainingDescription: "Silakan isi evaluasi ini dengan objektif demi peningkatan kualitas pelatihan kami.",
	}
}
