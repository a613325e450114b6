package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/domain/patient"
	"github.com/medicareplus/portal/internal/http/middlewares"
	"github.com/medicareplus/portal/internal/repo/postgres"
)

type PatientStore interface {
	Create(ctx context.Context, p patient.Patient) (patient.Patient, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]patient.Patient, error)
	GetByID(ctx context.Context, doctorID, id string) (patient.Patient, error)
	RecordCheck(ctx context.Context, doctorID, id, service string, notes *string) (patient.Patient, error)
}

// PatientsHandler serves the doctor-facing patient records.
type PatientsHandler struct {
	store PatientStore
	log   *slog.Logger
}

func NewPatientsHandler(store PatientStore, log *slog.Logger) *PatientsHandler {
	return &PatientsHandler{store: store, log: log}
}

type RecordCheckRequest struct {
	ServiceUsed string `json:"serviceUsed" binding:"required,oneof=medical_report diabetes_check"`
	Notes       string `json:"notes"`
}

func (h *PatientsHandler) Create(ctx *gin.Context) {
	doctorID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req patient.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.store.Create(cctx, patient.NewFromCreateRequest(doctorID, req))

	if err != nil {
		h.log.Error("patient create failed", "doctor_id", doctorID, "err", err)
		RespondInternal(ctx, "Could not create patient")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

func (h *PatientsHandler) List(ctx *gin.Context) {
	doctorID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	patients, err := h.store.ListByDoctor(cctx, doctorID)

	if err != nil {
		h.log.Error("patient list failed", "doctor_id", doctorID, "err", err)
		RespondInternal(ctx, "Could not list patients")
		return
	}

	if patients == nil {
		patients = []patient.Patient{}
	}

	ctx.JSON(http.StatusOK, gin.H{"patients": patients})
}

func (h *PatientsHandler) Get(ctx *gin.Context) {
	doctorID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	p, err := h.store.GetByID(cctx, doctorID, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, postgres.ErrPatientNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return
		}

		RespondInternal(ctx, "Could not load patient")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// RecordCheck marks a service as performed for the patient and appends a
// timestamped note when one was supplied.
func (h *PatientsHandler) RecordCheck(ctx *gin.Context) {
	doctorID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req RecordCheckRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	id := ctx.Param("id")

	existing, err := h.store.GetByID(cctx, doctorID, id)

	if err != nil {
		if errors.Is(err, postgres.ErrPatientNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return
		}

		RespondInternal(ctx, "Could not load patient")
		return
	}

	notes := patient.AppendCheckNote(existing.Notes, req.ServiceUsed, req.Notes, time.Now().UTC())

	updated, err := h.store.RecordCheck(cctx, doctorID, id, req.ServiceUsed, notes)

	if err != nil {
		if errors.Is(err, postgres.ErrPatientNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return
		}

		h.log.Error("record check failed", "doctor_id", doctorID, "patient_id", id, "err", err)
		RespondInternal(ctx, "Could not update patient")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}
