package patient

import (
	"time"

	"github.com/google/uuid"
)

// Services a doctor can log against a record.
const (
	ServiceMedicalReport = "medical_report"
	ServiceDiabetesCheck = "diabetes_check"
)

type Patient struct {
	ID                          string    `json:"id"`
	DoctorID                    string    `json:"doctorId"`
	Name                        string    `json:"name"`
	Age                         *int      `json:"age,omitempty"`
	Gender                      *string   `json:"gender,omitempty"`
	Notes                       *string   `json:"notes,omitempty"`
	MedicalReportAnalyzed       bool      `json:"medicalReportAnalyzed"`
	DiabetesPredictionPerformed bool      `json:"diabetesPredictionPerformed"`
	CreatedAt                   time.Time `json:"createdAt"`
	UpdatedAt                   time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Name                        string  `json:"name" binding:"required"`
	Age                         *int    `json:"age" binding:"omitempty,gte=0,lte=150"`
	Gender                      *string `json:"gender" binding:"omitempty,oneof=male female other"`
	Notes                       *string `json:"notes"`
	MedicalReportAnalyzed       bool    `json:"medicalReportAnalyzed"`
	DiabetesPredictionPerformed bool    `json:"diabetesPredictionPerformed"`
}

func NewFromCreateRequest(doctorID string, req CreateRequest) Patient {
	now := time.Now().UTC()

	return Patient{
		ID:                          uuid.NewString(),
		DoctorID:                    doctorID,
		Name:                        req.Name,
		Age:                         req.Age,
		Gender:                      req.Gender,
		Notes:                       req.Notes,
		MedicalReportAnalyzed:       req.MedicalReportAnalyzed,
		DiabetesPredictionPerformed: req.DiabetesPredictionPerformed,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
}

// AppendCheckNote extends the free-text notes with a timestamped entry for
// a logged service check. Empty notes are returned unchanged.
func AppendCheckNote(existing *string, service, note string, at time.Time) *string {
	if note == "" {
		return existing
	}

	label := "Report Analyzed"
	if service == ServiceDiabetesCheck {
		label = "Diabetes Check"
	}

	prefix := ""
	if existing != nil {
		prefix = *existing + "\n"
	}

	combined := prefix + "[" + at.Format("Jan 2, 2006 15:04") + "] " + label + ": " + note

	return &combined
}
