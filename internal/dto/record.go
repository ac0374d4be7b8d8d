package dto

import (
	"time"

	"github.com/lgu-assessor/faas-api/internal/models"
)

// RecordPayload carries the editable appraisal and assessment fields shared
// by create and update requests.
type RecordPayload struct {
	ArfNo        string `json:"arf_no" validate:"required"`
	PIN          string `json:"pin"`
	OctTctNo     string `json:"oct_tct_no"`
	CLN          string `json:"cln"`
	OwnerName    string `json:"owner_name" validate:"required"`
	OwnerAddress string `json:"owner_address"`

	AdministratorName    string `json:"administrator_name"`
	AdministratorAddress string `json:"administrator_address"`

	PropertyLocation     string `json:"property_location"`
	PropertyBarangay     string `json:"property_barangay"`
	PropertyMunicipality string `json:"property_municipality"`
	PropertyProvince     string `json:"property_province"`

	NorthBoundary string `json:"north_boundary"`
	SouthBoundary string `json:"south_boundary"`
	EastBoundary  string `json:"east_boundary"`
	WestBoundary  string `json:"west_boundary"`

	PreviousTDNo           string  `json:"previous_td_no"`
	PreviousOwner          string  `json:"previous_owner"`
	EffectivityYear        string  `json:"effectivity_year"`
	Taxability             string  `json:"taxability"`
	PreviousAVLand         float64 `json:"previous_av_land"`
	PreviousAVImprovements float64 `json:"previous_av_improvements"`
	PreviousTotalAV        float64 `json:"previous_total_av"`

	MemorandaCode      string `json:"memoranda_code"`
	MemorandaParagraph string `json:"memoranda_paragraph"`

	LandAppraisals models.RowSet `json:"land_appraisals"`
	Improvements   models.RowSet `json:"improvements"`
	MarketValues   models.RowSet `json:"market_values"`
	Assessments    models.RowSet `json:"assessments"`
}

// CreateRecordRequest creates a new draft record.
type CreateRecordRequest struct {
	RecordPayload
}

// UpdateRecordRequest replaces the record payload.
type UpdateRecordRequest struct {
	RecordPayload
}

// ApproveRecordRequest carries an optional approver comment.
type ApproveRecordRequest struct {
	Comment string `json:"comment"`
}

// RejectRecordRequest carries the mandatory rejection reason.
type RejectRecordRequest struct {
	Reason string `json:"reason"`
}

// GenerationOutcome reports the document pipeline result alongside a
// successful submission. Partial success is a valid, reportable state.
type GenerationOutcome struct {
	ExcelGenerated      bool   `json:"excelGenerated"`
	UnirrigGenerated    bool   `json:"unirrigGenerated"`
	PDFGenerated        bool   `json:"pdfGenerated"`
	UnirrigPDFGenerated bool   `json:"unirrigPdfGenerated"`
	Message             string `json:"message,omitempty"`
}

// SubmitRecordResponse pairs the transitioned record with the generation outcome.
type SubmitRecordResponse struct {
	Record     *models.FAASRecord `json:"record"`
	Generation GenerationOutcome  `json:"generation"`
}

// ArtifactLink describes one downloadable generated file.
type ArtifactLink struct {
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RecordFilesResponse lists current artifact download links for a record.
type RecordFilesResponse struct {
	RecordID string         `json:"record_id"`
	Files    []ArtifactLink `json:"files"`
}
