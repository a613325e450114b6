package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/domain/patient"
	"github.com/medicareplus/portal/internal/http/handlers"
	"github.com/medicareplus/portal/internal/repo/postgres"
)

type fakePatientStore struct {
	createFn func(ctx context.Context, p patient.Patient) (patient.Patient, error)
	listFn   func(ctx context.Context, doctorID string) ([]patient.Patient, error)
	getFn    func(ctx context.Context, doctorID, id string) (patient.Patient, error)
	recordFn func(ctx context.Context, doctorID, id, service string, notes *string) (patient.Patient, error)
}

func (f *fakePatientStore) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}

	return p, nil
}

func (f *fakePatientStore) ListByDoctor(ctx context.Context, doctorID string) ([]patient.Patient, error) {
	if f.listFn != nil {
		return f.listFn(ctx, doctorID)
	}

	return nil, nil
}

func (f *fakePatientStore) GetByID(ctx context.Context, doctorID, id string) (patient.Patient, error) {
	if f.getFn != nil {
		return f.getFn(ctx, doctorID, id)
	}

	return patient.Patient{ID: id, DoctorID: doctorID}, nil
}

func (f *fakePatientStore) RecordCheck(ctx context.Context, doctorID, id, service string, notes *string) (patient.Patient, error) {
	if f.recordFn != nil {
		return f.recordFn(ctx, doctorID, id, service, notes)
	}

	return patient.Patient{ID: id, DoctorID: doctorID, Notes: notes}, nil
}

// identityStub plants an authenticated doctor on the context the way the
// auth middleware would.
func identityStub(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("auth.userID", userID)
		c.Next()
	}
}

func patientsRouter(store handlers.PatientStore, userID string) *gin.Engine {
	r := gin.New()

	h := handlers.NewPatientsHandler(store, discardLogger())

	grp := r.Group("/api")

	if userID != "" {
		grp.Use(identityStub(userID))
	}

	grp.POST("/patients", h.Create)
	grp.GET("/patients", h.List)
	grp.GET("/patients/:id", h.Get)
	grp.POST("/patients/:id/checks", h.RecordCheck)

	return r
}

func TestCreatePatientHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		userID     string
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"name":"John Smith","age":42,"gender":"male"}`,
			userID:     "doc1",
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing_name",
			body:       `{"age":42}`,
			userID:     "doc1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad_gender",
			body:       `{"name":"John Smith","gender":"robot"}`,
			userID:     "doc1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no_identity",
			body:       `{"name":"John Smith"}`,
			userID:     "",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var created *patient.Patient

			store := &fakePatientStore{
				createFn: func(ctx context.Context, p patient.Patient) (patient.Patient, error) {
					created = &p
					return p, nil
				},
			}

			r := patientsRouter(store, tt.userID)

			req := httptest.NewRequest(http.MethodPost, "/api/patients", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusCreated {
				if created == nil || created.DoctorID != "doc1" || created.ID == "" {
					t.Fatalf("stored patient not stamped with doctor/id: %+v", created)
				}
			}
		})
	}
}

func TestListPatientsHandler(t *testing.T) {
	t.Run("empty_list_is_not_null", func(t *testing.T) {
		r := patientsRouter(&fakePatientStore{}, "doc1")

		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d", w.Code)
		}

		if !strings.Contains(w.Body.String(), `"patients":[]`) {
			t.Fatalf("want empty array, got %s", w.Body.String())
		}
	})
}

func TestGetPatientHandler(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		store := &fakePatientStore{
			getFn: func(ctx context.Context, doctorID, id string) (patient.Patient, error) {
				return patient.Patient{}, postgres.ErrPatientNotFound
			},
		}

		r := patientsRouter(store, "doc1")

		req := httptest.NewRequest(http.MethodGet, "/api/patients/p404", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, want 404", w.Code)
		}
	})
}

func TestRecordCheckHandler(t *testing.T) {
	t.Run("appends_timestamped_note", func(t *testing.T) {
		existing := "seen 2024"

		var gotNotes *string
		var gotService string

		store := &fakePatientStore{
			getFn: func(ctx context.Context, doctorID, id string) (patient.Patient, error) {
				return patient.Patient{ID: id, DoctorID: doctorID, Notes: &existing}, nil
			},
			recordFn: func(ctx context.Context, doctorID, id, service string, notes *string) (patient.Patient, error) {
				gotService = service
				gotNotes = notes
				return patient.Patient{ID: id, DoctorID: doctorID, Notes: notes, DiabetesPredictionPerformed: true}, nil
			},
		}

		r := patientsRouter(store, "doc1")

		body := `{"serviceUsed":"diabetes_check","notes":"elevated glucose"}`
		req := httptest.NewRequest(http.MethodPost, "/api/patients/p1/checks", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		if gotService != patient.ServiceDiabetesCheck {
			t.Fatalf("got service %q", gotService)
		}

		if gotNotes == nil ||
			!strings.Contains(*gotNotes, "seen 2024") ||
			!strings.Contains(*gotNotes, "Diabetes Check: elevated glucose") {
			t.Fatalf("notes not appended: %v", gotNotes)
		}

		var resp patient.Patient

		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad body: %v", err)
		}

		if !resp.DiabetesPredictionPerformed {
			t.Fatalf("flag not set in response: %+v", resp)
		}
	})

	t.Run("unknown_service_rejected", func(t *testing.T) {
		r := patientsRouter(&fakePatientStore{}, "doc1")

		body := `{"serviceUsed":"horoscope"}`
		req := httptest.NewRequest(http.MethodPost, "/api/patients/p1/checks", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want 400", w.Code)
		}
	})
}

func TestAppendCheckNote(t *testing.T) {
	at := time.Date(2025, time.March, 4, 10, 30, 0, 0, time.UTC)

	t.Run("empty_note_is_noop", func(t *testing.T) {
		existing := "keep me"

		got := patient.AppendCheckNote(&existing, patient.ServiceMedicalReport, "", at)

		if got == nil || *got != "keep me" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("first_note", func(t *testing.T) {
		got := patient.AppendCheckNote(nil, patient.ServiceMedicalReport, "clear scan", at)

		want := "[Mar 4, 2025 10:30] Report Analyzed: clear scan"

		if got == nil || *got != want {
			t.Fatalf("got %v, want %q", got, want)
		}
	})

	t.Run("appends_on_new_line", func(t *testing.T) {
		existing := "first"

		got := patient.AppendCheckNote(&existing, patient.ServiceDiabetesCheck, "second", at)

		want := "first\n[Mar 4, 2025 10:30] Diabetes Check: second"

		if got == nil || *got != want {
			t.Fatalf("got %v, want %q", got, want)
		}
	})
}
