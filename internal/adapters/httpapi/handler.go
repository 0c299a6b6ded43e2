// Package httpapi exposes the coordinator's operations over HTTP using echo.
package httpapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"medtracker/internal/core"
	"medtracker/pkg/domain"
)

// Service is the subset of the coordinator the handlers call.
type Service interface {
	Latest() (core.Snapshot, bool)
	Refresh(ctx context.Context) (core.Snapshot, error)
	AddPatient(ctx context.Context, p domain.Patient) (string, error)
	UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (bool, error)
	DeletePatient(ctx context.Context, id string) (bool, error)
	AddMedication(ctx context.Context, m domain.Medication) (string, error)
	UpdateMedication(ctx context.Context, id string, m domain.Medication) (bool, error)
	ToggleMedicationStatus(ctx context.Context, id string, enabled bool) (bool, error)
	DeleteMedication(ctx context.Context, id string) (bool, error)
	RecordDose(ctx context.Context, medicationID string, d domain.Dose) (bool, error)
	RecordDefaultDose(ctx context.Context, medicationID string) (bool, error)
	RecordTemperature(ctx context.Context, patientID string, t domain.Temperature) (bool, error)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	svc Service
}

// NewHandler constructs a handler over svc.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts every route on g, which is expected to be rooted at /api/v1.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/snapshot", h.snapshot)
	g.POST("/refresh", h.refresh)

	g.POST("/patients", h.addPatient)
	g.PATCH("/patients/:id", h.updatePatient)
	g.DELETE("/patients/:id", h.deletePatient)
	g.POST("/patients/:id/temperatures", h.recordTemperature)

	g.POST("/medications", h.addMedication)
	g.PUT("/medications/:id", h.updateMedication)
	g.DELETE("/medications/:id", h.deleteMedication)
	g.POST("/medications/:id/toggle", h.toggleMedication)
	g.POST("/medications/:id/doses", h.recordDose)
	g.GET("/medications/:id/doses", h.listDoses)
}

func (h *Handler) snapshot(c echo.Context) error {
	snap, ok := h.svc.Latest()
	if !ok {
		return writeError(c, http.StatusServiceUnavailable, core.ErrNotReady.Error())
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) refresh(c echo.Context) error {
	snap, err := h.svc.Refresh(c.Request().Context())
	if err != nil {
		return h.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) addPatient(c echo.Context) error {
	var p domain.Patient
	if err := decode(c, &p, false); err != nil {
		return err
	}
	id, err := h.svc.AddPatient(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, err, map[string]any{"id": id})
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) updatePatient(c echo.Context) error {
	var patch domain.PatientPatch
	if err := decode(c, &patch, false); err != nil {
		return err
	}
	ok, err := h.svc.UpdatePatient(c.Request().Context(), c.Param("id"), patch)
	return h.result(c, ok, err, "patient", "updated")
}

func (h *Handler) deletePatient(c echo.Context) error {
	ok, err := h.svc.DeletePatient(c.Request().Context(), c.Param("id"))
	return h.result(c, ok, err, "patient", "deleted")
}

func (h *Handler) recordTemperature(c echo.Context) error {
	var t domain.Temperature
	if err := decode(c, &t, false); err != nil {
		return err
	}
	ok, err := h.svc.RecordTemperature(c.Request().Context(), c.Param("id"), t)
	return h.created(c, ok, err, "patient")
}

func (h *Handler) addMedication(c echo.Context) error {
	var m domain.Medication
	if err := decode(c, &m, false); err != nil {
		return err
	}
	id, err := h.svc.AddMedication(c.Request().Context(), m)
	if err != nil {
		return h.fail(c, err, map[string]any{"id": id})
	}
	if id == "" {
		return writeError(c, http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) updateMedication(c echo.Context) error {
	var m domain.Medication
	if err := decode(c, &m, false); err != nil {
		return err
	}
	ok, err := h.svc.UpdateMedication(c.Request().Context(), c.Param("id"), m)
	return h.result(c, ok, err, "medication or patient", "updated")
}

func (h *Handler) deleteMedication(c echo.Context) error {
	ok, err := h.svc.DeleteMedication(c.Request().Context(), c.Param("id"))
	return h.result(c, ok, err, "medication", "deleted")
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) toggleMedication(c echo.Context) error {
	var req toggleRequest
	if err := decode(c, &req, false); err != nil {
		return err
	}
	if req.Enabled == nil {
		return writeError(c, http.StatusBadRequest, "enabled is required")
	}
	ok, err := h.svc.ToggleMedicationStatus(c.Request().Context(), c.Param("id"), *req.Enabled)
	return h.result(c, ok, err, "medication", "updated")
}

// recordDose accepts an empty body, which records a dose now with the
// medication's configured dosage and unit.
func (h *Handler) recordDose(c echo.Context) error {
	var d domain.Dose
	if err := decode(c, &d, true); err != nil {
		if errors.Is(err, errEmptyBody) {
			ok, err := h.svc.RecordDefaultDose(c.Request().Context(), c.Param("id"))
			return h.created(c, ok, err, "medication")
		}
		return err
	}
	ok, err := h.svc.RecordDose(c.Request().Context(), c.Param("id"), d)
	return h.created(c, ok, err, "medication")
}

func (h *Handler) listDoses(c echo.Context) error {
	snap, ok := h.svc.Latest()
	if !ok {
		return writeError(c, http.StatusServiceUnavailable, core.ErrNotReady.Error())
	}
	id := c.Param("id")
	med, ok := snap.Medications[id]
	if !ok {
		return writeError(c, http.StatusNotFound, "medication not found")
	}
	doses := snap.Doses[id]
	if doses == nil {
		doses = []domain.Dose{}
	}
	switch negotiateFormat(c.Request()) {
	case formatCSV:
		return streamCSV(c, med, doses)
	case formatJSON:
		return c.JSON(http.StatusOK, doses)
	default:
		return writeError(c, http.StatusNotAcceptable, "unsupported format")
	}
}

func (h *Handler) result(c echo.Context, ok bool, err error, entity, verb string) error {
	if err != nil {
		return h.fail(c, err, map[string]any{verb: ok})
	}
	if !ok {
		return writeError(c, http.StatusNotFound, entity+" not found")
	}
	return c.JSON(http.StatusOK, map[string]any{verb: true})
}

func (h *Handler) created(c echo.Context, ok bool, err error, entity string) error {
	if err != nil {
		return h.fail(c, err, map[string]any{"recorded": ok})
	}
	if !ok {
		return writeError(c, http.StatusNotFound, entity+" not found")
	}
	return c.JSON(http.StatusCreated, map[string]any{"recorded": true})
}

// fail maps coordinator errors onto status codes. A persistence error means
// the change was applied in memory, so the partial result is reported too.
func (h *Handler) fail(c echo.Context, err error, partial map[string]any) error {
	var ve *domain.ValidationError
	var pe *domain.PersistenceError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, core.ErrNotReady):
		return writeError(c, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &pe):
		body := map[string]any{"error": pe.Error(), "held_in_memory": true}
		for k, v := range partial {
			body[k] = v
		}
		return c.JSON(http.StatusInternalServerError, body)
	default:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
}

var errEmptyBody = errors.New("empty body")

// decode reads a JSON body into dst. Failures come back as 400 HTTP errors.
// With allowEmpty an empty body returns errEmptyBody instead.
func decode(c echo.Context, dst any, allowEmpty bool) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if allowEmpty {
			return errEmptyBody
		}
		return echo.NewHTTPError(http.StatusBadRequest, "request body is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	return nil
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]any{"error": message})
}

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

func negotiateFormat(r *http.Request) string {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			return formatCSV
		}
		return formatJSON
	}
	switch wanted {
	case formatCSV, formatJSON:
		return wanted
	}
	return ""
}

func streamCSV(c echo.Context, med domain.Medication, doses []domain.Dose) error {
	filename := fmt.Sprintf("%s-doses-%s.csv", med.ID, time.Now().UTC().Format("20060102T150405Z"))
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv")
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	resp.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(resp)
	if err := writer.Write([]string{"timestamp", "amount", "unit", "notes"}); err != nil {
		return err
	}
	for _, d := range doses {
		amount := ""
		if d.Amount != nil {
			amount = fmt.Sprintf("%g", *d.Amount)
		}
		if err := writer.Write([]string{d.Timestamp, amount, d.Unit, d.Notes}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
