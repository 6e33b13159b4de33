package escalation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// ClinicalLogAlerter writes complication reports to the medical-record log.
// Alerts without an identified patient have no record to attach to and are skipped.
type ClinicalLogAlerter struct {
	db *sql.DB
}

func NewClinicalLogAlerter(db *sql.DB) *ClinicalLogAlerter {
	return &ClinicalLogAlerter{db: db}
}

func (c *ClinicalLogAlerter) ComplicationAlert(ctx context.Context, alert triage.ComplicationAlert) error {
	if strings.TrimSpace(alert.PatientID) == "" {
		return nil
	}
	id := alert.ID
	if id == "" {
		id = uuid.NewString()
	}
	var treatmentID, service sql.NullString
	if alert.Treatment != nil {
		treatmentID = nullString(alert.Treatment.ID)
		service = nullString(alert.Treatment.ServiceName)
	}

	query := `
		INSERT INTO complication_logs (
			id, patient_id, treatment_id, service_name, message,
			keywords, urgency, source, reported_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'sms', $8)
	`
	_, err := c.db.ExecContext(ctx, query,
		id,
		alert.PatientID,
		treatmentID,
		service,
		alert.Message,
		pq.Array(alert.Keywords),
		string(alert.Urgency),
		alert.RaisedAt,
	)
	if err != nil {
		return fmt.Errorf("escalation: failed to write complication log: %w", err)
	}
	return nil
}

func (c *ClinicalLogAlerter) EmergencyAlert(context.Context, triage.EmergencyAlert) error {
	return nil
}

func (c *ClinicalLogAlerter) StaffAlert(context.Context, triage.StaffAlert) error {
	return nil
}

func (c *ClinicalLogAlerter) DeliveryFailureAlert(context.Context, triage.DeliveryFailureAlert) error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
