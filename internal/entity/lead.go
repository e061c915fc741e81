package entity

import "time"

// RawLead is a flattened upstream contact. Timestamps keep the upstream text;
// absent properties are empty strings.
type RawLead struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	LifecycleStage string
	CreatedAt      string
	LastModifiedAt string
}

type Lead struct {
	ExternalID      string    `json:"external_id"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name"`
	LifecycleStage  string    `json:"lifecycle_stage"`
	CreatedAt       time.Time `json:"created_at"`
	SourceUpdatedAt time.Time `json:"source_updated_at"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

const LifecycleStageCustomer = "customer"

var LeadsTable = Table{
	Name: "crm_leads",
	Key:  "external_id",
	Columns: []string{
		"external_id",
		"email",
		"full_name",
		"lifecycle_stage",
		"created_at",
		"source_updated_at",
		"last_synced_at",
	},
}

func (l Lead) Row() Row {
	return Row{
		l.ExternalID,
		l.Email,
		l.FullName,
		l.LifecycleStage,
		l.CreatedAt.UTC(),
		l.SourceUpdatedAt.UTC(),
		l.LastSyncedAt.UTC(),
	}
}
