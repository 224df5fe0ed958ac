package types

// WireVariant selects the backend-facing shape of the form part.
type WireVariant string

const (
	// WireVariantWeb flattens the seizure type into one string and sends the
	// extended symptom set.
	WireVariantWeb WireVariant = "web"
	// WireVariantMobile sends the legacy seizureTypes boolean map and the
	// legacy symptom names.
	WireVariantMobile WireVariant = "mobile"
)

// SeizureFrequency is the backend enum derived from the occurrence choice.
type SeizureFrequency string

const (
	SeizureFrequencyDaily   SeizureFrequency = "DAILY"
	SeizureFrequencyWeekly  SeizureFrequency = "WEEKLY"
	SeizureFrequencyMonthly SeizureFrequency = "MONTHLY"
)

// LegacySeizureTypes is the mobile variant's seizure type group.
type LegacySeizureTypes struct {
	TonicClonic bool `json:"tonicClonic"`
	Absence     bool `json:"absence"`
	Focal       bool `json:"focal"`
	Myoclonic   bool `json:"myoclonic"`
	Atonic      bool `json:"atonic"`
}

// WirePayload is the JSON sent in the "form" part of a submission. Pointer
// fields encode as null when missing.
type WirePayload struct {
	FullName    string  `json:"fullName"`
	BirthDate   *string `json:"birthDate"`
	Gender      *string `json:"gender"`
	CINNumber   *int64  `json:"cinNumber"`
	RegionID    *int64  `json:"governorate_id"`
	CityID      *int64  `json:"city_id"`
	Address     string  `json:"address"`
	PhoneNumber string  `json:"phoneNumber"`

	FirstSeizureDate *string           `json:"firstSeizureDate"`
	LastSeizureDate  *string           `json:"lastSeizureDate"`
	IsFirstSeizure   bool              `json:"isFirstSeizure"`
	SeizureFrequency *SeizureFrequency `json:"seizureFrequency"`
	SeizureDuration  *int64            `json:"seizureDuration"`
	TotalSeizures    *int64            `json:"totalSeizures"`

	HasAura         bool    `json:"hasAura"`
	AuraDescription *string `json:"auraDescription"`

	// web variant
	SeizureType *string `json:"seizureType,omitempty"`
	// mobile variant
	SeizureTypes *LegacySeizureTypes `json:"seizureTypes,omitempty"`

	LossOfConsciousness bool `json:"lossOfConsciousness"`
	BodyStiffening      bool `json:"bodyStiffening"`
	EyeDeviation        bool `json:"eyeDeviation"`
	Incontinence        bool `json:"incontinence"`

	// web variant
	ProgressiveFall     *bool `json:"progressiveFall,omitempty"`
	SuddenFall          *bool `json:"suddenFall,omitempty"`
	ClonicJerks         *bool `json:"clonicJerks,omitempty"`
	Automatisms         *bool `json:"automatisms,omitempty"`
	ActivityStop        *bool `json:"activityStop,omitempty"`
	SensitiveDisorders  *bool `json:"sensitiveDisorders,omitempty"`
	SensoryDisorders    *bool `json:"sensoryDisorders,omitempty"`
	LateralTongueBiting *bool `json:"lateralTongueBiting,omitempty"`

	// mobile variant
	JerkingMovements     *bool   `json:"jerkingMovements,omitempty"`
	TongueBiting         *bool   `json:"tongueBiting,omitempty"`
	TongueBitingLocation *string `json:"tongueBitingLocation,omitempty"`

	OtherInformation string `json:"otherInformation"`
}
