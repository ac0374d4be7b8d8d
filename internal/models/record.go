package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordStatus captures the FAAS record lifecycle state.
type RecordStatus string

const (
	RecordStatusDraft    RecordStatus = "DRAFT"
	RecordStatusPending  RecordStatus = "PENDING"
	RecordStatusApproved RecordStatus = "APPROVED"
	RecordStatusRejected RecordStatus = "REJECTED"
)

// Editable reports whether an encoder may still change the payload.
func (s RecordStatus) Editable() bool {
	switch s {
	case RecordStatusDraft, RecordStatusPending, RecordStatusRejected:
		return true
	default:
		return false
	}
}

// Decided reports whether the status carries an approver decision.
func (s RecordStatus) Decided() bool {
	return s == RecordStatusApproved || s == RecordStatusRejected
}

// RowSet stores a variable-length sub-table (land appraisals, improvements,
// market values, assessments) as a JSONB column.
type RowSet []map[string]interface{}

// Value marshals the rows to JSON for persistence.
func (r RowSet) Value() (driver.Value, error) {
	if r == nil {
		r = RowSet{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal row set: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the row set.
func (r *RowSet) Scan(value interface{}) error {
	if value == nil {
		*r = RowSet{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RowSet", value)
	}
	if len(data) == 0 {
		*r = RowSet{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal row set: %w", err)
	}
	return nil
}

// FAASRecord is the Field Appraisal and Assessment Sheet under lifecycle
// management. Generated-artifact paths are nullable: they are cleared on
// every payload edit and repopulated by the generation pipeline.
type FAASRecord struct {
	ID string `db:"id" json:"id"`

	// Property identification.
	ArfNo        string `db:"arf_no" json:"arf_no"`
	PIN          string `db:"pin" json:"pin"`
	OctTctNo     string `db:"oct_tct_no" json:"oct_tct_no"`
	CLN          string `db:"cln" json:"cln"`
	OwnerName    string `db:"owner_name" json:"owner_name"`
	OwnerAddress string `db:"owner_address" json:"owner_address"`

	AdministratorName    string `db:"administrator_name" json:"administrator_name"`
	AdministratorAddress string `db:"administrator_address" json:"administrator_address"`

	PropertyLocation     string `db:"property_location" json:"property_location"`
	PropertyBarangay     string `db:"property_barangay" json:"property_barangay"`
	PropertyMunicipality string `db:"property_municipality" json:"property_municipality"`
	PropertyProvince     string `db:"property_province" json:"property_province"`

	NorthBoundary string `db:"north_boundary" json:"north_boundary"`
	SouthBoundary string `db:"south_boundary" json:"south_boundary"`
	EastBoundary  string `db:"east_boundary" json:"east_boundary"`
	WestBoundary  string `db:"west_boundary" json:"west_boundary"`

	// Previous assessment information.
	PreviousTDNo           string  `db:"previous_td_no" json:"previous_td_no"`
	PreviousOwner          string  `db:"previous_owner" json:"previous_owner"`
	EffectivityYear        string  `db:"effectivity_year" json:"effectivity_year"`
	Taxability             string  `db:"taxability" json:"taxability"`
	PreviousAVLand         float64 `db:"previous_av_land" json:"previous_av_land"`
	PreviousAVImprovements float64 `db:"previous_av_improvements" json:"previous_av_improvements"`
	PreviousTotalAV        float64 `db:"previous_total_av" json:"previous_total_av"`

	MemorandaCode      string `db:"memoranda_code" json:"memoranda_code"`
	MemorandaParagraph string `db:"memoranda_paragraph" json:"memoranda_paragraph"`

	// Variable-length sub-tables, persisted as JSONB.
	LandAppraisals RowSet `db:"land_appraisals" json:"land_appraisals"`
	Improvements   RowSet `db:"improvements" json:"improvements"`
	MarketValues   RowSet `db:"market_values" json:"market_values"`
	Assessments    RowSet `db:"assessments" json:"assessments"`

	Status          RecordStatus `db:"status" json:"status"`
	EncoderID       string       `db:"encoder_id" json:"encoder_id"`
	ApproverID      *string      `db:"approver_id" json:"approver_id,omitempty"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time   `db:"decided_at" json:"decided_at,omitempty"`

	// Generated artifacts.
	ExcelPath        *string `db:"excel_path" json:"excel_path,omitempty"`
	UnirrigExcelPath *string `db:"unirrig_excel_path" json:"unirrig_excel_path,omitempty"`
	PDFPath          *string `db:"pdf_path" json:"pdf_path,omitempty"`
	UnirrigPDFPath   *string `db:"unirrig_pdf_path" json:"unirrig_pdf_path,omitempty"`

	Hidden    bool      `db:"hidden" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Decision groups the fields that are only meaningful while a record is
// approved or rejected. They are set and cleared together.
type Decision struct {
	ApproverID string
	DecidedAt  time.Time
	Reason     string
}

// Decision returns the current decision, or nil while the record is undecided.
func (r *FAASRecord) Decision() *Decision {
	if !r.Status.Decided() || r.ApproverID == nil || r.DecidedAt == nil {
		return nil
	}
	d := Decision{ApproverID: *r.ApproverID, DecidedAt: *r.DecidedAt}
	if r.RejectionReason != nil {
		d.Reason = *r.RejectionReason
	}
	return &d
}

// ApplyDecision stamps the record with an approver decision and target status.
func (r *FAASRecord) ApplyDecision(status RecordStatus, d Decision) {
	r.Status = status
	r.ApproverID = &d.ApproverID
	decidedAt := d.DecidedAt
	r.DecidedAt = &decidedAt
	if strings.TrimSpace(d.Reason) != "" {
		reason := d.Reason
		r.RejectionReason = &reason
	} else {
		r.RejectionReason = nil
	}
}

// ClearDecision reverts the record to pending and drops all decision fields.
func (r *FAASRecord) ClearDecision() {
	r.Status = RecordStatusPending
	r.ApproverID = nil
	r.DecidedAt = nil
	r.RejectionReason = nil
}

// ArtifactPaths returns the non-nil generated file paths.
func (r *FAASRecord) ArtifactPaths() []string {
	paths := make([]string, 0, 4)
	for _, p := range []*string{r.ExcelPath, r.UnirrigExcelPath, r.PDFPath, r.UnirrigPDFPath} {
		if p != nil && *p != "" {
			paths = append(paths, *p)
		}
	}
	return paths
}

// ClearArtifacts nulls all generated file path fields.
func (r *FAASRecord) ClearArtifacts() {
	r.ExcelPath = nil
	r.UnirrigExcelPath = nil
	r.PDFPath = nil
	r.UnirrigPDFPath = nil
}

// FileTag returns the record's filename-safe identifier, matching the
// sanitization the rendering script applies when it names artifact files.
func (r *FAASRecord) FileTag() string {
	return SanitizeFilename(r.ArfNo)
}

// SanitizeFilename mirrors the generator script's filename cleaning: spaces,
// dots, and shell-hostile characters collapse to single underscores.
func SanitizeFilename(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown"
	}
	var b strings.Builder
	for _, ch := range raw {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := b.String()
	for strings.Contains(cleaned, "__") {
		cleaned = strings.ReplaceAll(cleaned, "__", "_")
	}
	return strings.Trim(cleaned, "_")
}

// RecordSummary carries the minimal public fields broadcast with lifecycle events.
type RecordSummary struct {
	ID        string       `json:"id"`
	ArfNo     string       `json:"arf_no"`
	OwnerName string       `json:"owner_name"`
	Status    RecordStatus `json:"status"`
	EncoderID string       `json:"encoder_id"`
}

// Summary projects the record onto its broadcastable fields.
func (r *FAASRecord) Summary() RecordSummary {
	return RecordSummary{
		ID:        r.ID,
		ArfNo:     r.ArfNo,
		OwnerName: r.OwnerName,
		Status:    r.Status,
		EncoderID: r.EncoderID,
	}
}

// RecordFilter captures filtering criteria for listing records.
type RecordFilter struct {
	Status    []RecordStatus
	EncoderID string
	Search    string
	Page      int
	PageSize  int
}
