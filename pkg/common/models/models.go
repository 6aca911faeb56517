package models

import (
	"bytes"
	"encoding/json"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

type Role string

const (
	RoleClinician      Role = "clinician"
	RoleFacilityWorker Role = "facility_worker"
)

func (r Role) Valid() bool {
	return r == RoleClinician || r == RoleFacilityWorker
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // child.created, measurement.recorded, ...
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Facilities & users
type Facility struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	FacilityID   *int64    `json:"facility_id,omitempty"`
	FacilityName string    `json:"facility_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateFacilityRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type BootstrapRequest struct {
	Facilities        []CreateFacilityRequest `json:"facilities"`
	ClinicianName     string                  `json:"clinician_name"`
	ClinicianEmail    string                  `json:"clinician_email"`
	ClinicianPassword string                  `json:"clinician_password"`
}

type BootstrapResponse struct {
	Facilities []Facility `json:"facilities"`
	User       User       `json:"user"`
	Token      string     `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type RegisterWorkerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FacilityID int64  `json:"facility_id"`
}

// Children & measurements
type Child struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Gender        Gender    `json:"gender"`
	BirthDate     Date      `json:"birth_date"`
	GuardianName  string    `json:"guardian_name"`
	GuardianPhone *string   `json:"guardian_phone,omitempty"`
	FacilityID    int64     `json:"facility_id"`
	AccessToken   string    `json:"access_token"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateChildRequest struct {
	Name          string  `json:"name"`
	Gender        Gender  `json:"gender"`
	BirthDate     Date    `json:"birth_date"`
	GuardianName  string  `json:"guardian_name"`
	GuardianPhone *string `json:"guardian_phone,omitempty"`
	FacilityID    int64   `json:"facility_id"`
}

// UpdateChildRequest carries only the fields to change; nil means "leave as is".
// An empty GuardianPhone clears the stored number.
type UpdateChildRequest struct {
	Name          *string `json:"name,omitempty"`
	Gender        *Gender `json:"gender,omitempty"`
	BirthDate     *Date   `json:"birth_date,omitempty"`
	GuardianName  *string `json:"guardian_name,omitempty"`
	GuardianPhone *string `json:"guardian_phone,omitempty"`
	FacilityID    *int64  `json:"facility_id,omitempty"`

	// Immutable; present only so a payload that names them can be rejected.
	ID          *int64  `json:"id,omitempty"`
	AccessToken *string `json:"access_token,omitempty"`
	Token       *string `json:"token,omitempty"`

	namesImmutable bool
}

// UnmarshalJSON rejects unknown keys and remembers whether an immutable key
// was named at all, including with a null value.
func (r *UpdateChildRequest) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	type fields UpdateChildRequest
	var decoded fields
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&decoded); err != nil {
		return err
	}
	*r = UpdateChildRequest(decoded)
	for _, key := range []string{"id", "access_token", "token"} {
		if _, ok := keys[key]; ok {
			r.namesImmutable = true
		}
	}
	return nil
}

// NamesImmutable reports whether the payload tried to set id or the access
// token.
func (r UpdateChildRequest) NamesImmutable() bool {
	return r.namesImmutable || r.ID != nil || r.AccessToken != nil || r.Token != nil
}

func (r UpdateChildRequest) Empty() bool {
	return r.Name == nil && r.Gender == nil && r.BirthDate == nil &&
		r.GuardianName == nil && r.GuardianPhone == nil && r.FacilityID == nil
}

type IndicatorResult struct {
	Label    string  `json:"label"`
	Severity string  `json:"severity"`
	ApproxZ  float64 `json:"approx_z"`
}

type IndicatorSummary struct {
	HeightForAge    IndicatorResult `json:"height_for_age"`
	WeightForAge    IndicatorResult `json:"weight_for_age"`
	WeightForHeight IndicatorResult `json:"weight_for_height"`
	AgeMonths       int             `json:"age_months"`
}

type Measurement struct {
	ID               int64             `json:"id"`
	ChildID          int64             `json:"child_id"`
	MeasuredOn       Date              `json:"measured_on"`
	WeightKg         float64           `json:"weight_kg"`
	HeightCm         float64           `json:"height_cm"`
	ZHeightForAge    *float64          `json:"zscore_height_for_age"`
	ZWeightForAge    *float64          `json:"zscore_weight_for_age"`
	ZWeightForHeight *float64          `json:"zscore_weight_for_height"`
	Status           string            `json:"status"`
	RecordedBy       int64             `json:"recorded_by"`
	CreatedAt        time.Time         `json:"created_at"`
	Indicators       *IndicatorSummary `json:"indicators,omitempty"`
}

type RecordMeasurementRequest struct {
	ChildID  int64    `json:"child_id"`
	WeightKg *float64 `json:"weight_kg"`
	HeightCm *float64 `json:"height_cm"`
}

// GrowthAlert is raised when a recorded measurement has a danger-level
// indicator.
type GrowthAlert struct {
	ChildID       int64     `json:"child_id"`
	FacilityID    int64     `json:"facility_id"`
	MeasurementID int64     `json:"measurement_id"`
	Status        string    `json:"status"`
	RecordedBy    int64     `json:"recorded_by"`
	RaisedAt      time.Time `json:"raised_at"`
}

// Public (token) projections. These deliberately omit internal ids, facility,
// guardian phone, the token and the recording user.
type PublicChildView struct {
	Name         string `json:"name"`
	Gender       Gender `json:"gender"`
	BirthDate    Date   `json:"birth_date"`
	GuardianName string `json:"guardian_name"`
}

type PublicMeasurement struct {
	MeasuredOn       Date     `json:"measured_on"`
	WeightKg         float64  `json:"weight_kg"`
	HeightCm         float64  `json:"height_cm"`
	Status           string   `json:"status"`
	ZHeightForAge    *float64 `json:"zscore_height_for_age"`
	ZWeightForAge    *float64 `json:"zscore_weight_for_age"`
	ZWeightForHeight *float64 `json:"zscore_weight_for_height"`
}

type PublicReport struct {
	Child        PublicChildView     `json:"child"`
	Measurements []PublicMeasurement `json:"measurements"`
}
