package types

// Gender values accepted by the backend.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Occurrence is the single-choice seizure frequency classification. The
// empty value means not chosen.
type Occurrence string

const (
	OccurrenceNone    Occurrence = ""
	OccurrenceDaily   Occurrence = "daily"
	OccurrenceWeekly  Occurrence = "weekly"
	OccurrenceMonthly Occurrence = "monthly"
)

var Occurrences = []Occurrence{OccurrenceDaily, OccurrenceWeekly, OccurrenceMonthly}

func (o Occurrence) Valid() bool {
	switch o {
	case OccurrenceNone, OccurrenceDaily, OccurrenceWeekly, OccurrenceMonthly:
		return true
	}
	return false
}

// SeizureType is the single-choice seizure classification.
type SeizureType string

const (
	SeizureTypeNone                            SeizureType = ""
	SeizureTypeGeneralizedTonicClonic          SeizureType = "generalizedTonicClonic"
	SeizureTypeGeneralizedOther                SeizureType = "generalizedOther"
	SeizureTypeAbsence                         SeizureType = "absence"
	SeizureTypeFocalWithLossOfConsciousness    SeizureType = "focalWithLossOfConsciousness"
	SeizureTypeFocalWithoutLossOfConsciousness SeizureType = "focalWithoutLossOfConsciousness"
	SeizureTypeMyoclonic                       SeizureType = "myoclonic"
	SeizureTypeAtonic                          SeizureType = "atonic"
)

var SeizureTypes = []SeizureType{
	SeizureTypeGeneralizedTonicClonic,
	SeizureTypeGeneralizedOther,
	SeizureTypeAbsence,
	SeizureTypeFocalWithLossOfConsciousness,
	SeizureTypeFocalWithoutLossOfConsciousness,
	SeizureTypeMyoclonic,
	SeizureTypeAtonic,
}

func (t SeizureType) Valid() bool {
	if t == SeizureTypeNone {
		return true
	}
	for _, v := range SeizureTypes {
		if v == t {
			return true
		}
	}
	return false
}

// TongueBitingLocation is only meaningful when LateralTongueBiting is set.
type TongueBitingLocation string

const (
	TongueBitingNone    TongueBitingLocation = ""
	TongueBitingLateral TongueBitingLocation = "lateral"
	TongueBitingTip     TongueBitingLocation = "tip"
)

// Symptoms is the nested group of ictal symptom flags.
type Symptoms struct {
	LossOfConsciousness  bool                 `form:"lossOfConsciousness" json:"lossOfConsciousness"`
	ProgressiveFall      bool                 `form:"progressiveFall" json:"progressiveFall"`
	SuddenFall           bool                 `form:"suddenFall" json:"suddenFall"`
	BodyStiffening       bool                 `form:"bodyStiffening" json:"bodyStiffening"`
	ClonicJerks          bool                 `form:"clonicJerks" json:"clonicJerks"`
	Automatisms          bool                 `form:"automatisms" json:"automatisms"`
	EyeDeviation         bool                 `form:"eyeDeviation" json:"eyeDeviation"`
	ActivityStop         bool                 `form:"activityStop" json:"activityStop"`
	SensitiveDisorders   bool                 `form:"sensitiveDisorders" json:"sensitiveDisorders"`
	SensoryDisorders     bool                 `form:"sensoryDisorders" json:"sensoryDisorders"`
	Incontinence         bool                 `form:"incontinence" json:"incontinence"`
	LateralTongueBiting  bool                 `form:"lateralTongueBiting" json:"lateralTongueBiting"`
	TongueBitingLocation TongueBitingLocation `form:"tongueBitingLocation" json:"tongueBitingLocation" validate:"tonguebiting"`
}

// Attachment references one picked media file. A nil *Attachment means not
// provided; a non-nil one always carries a URI.
type Attachment struct {
	URI       string `json:"uri"`
	MimeType  string `json:"mimeType"`
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// Attachments groups the optional binary parts of a submission.
type Attachments struct {
	Image *Attachment
	Video *Attachment
}

// FormState is one in-progress intake form. Field order matters: the
// validator reports required fields in declaration order.
type FormState struct {
	FullName         string `form:"fullName" json:"fullName" validate:"required"`
	BirthDate        string `form:"birthDate" json:"birthDate" validate:"required"`
	Gender           Gender `form:"gender" json:"gender" validate:"required,oneof=M F"`
	CINNumber        string `form:"cinNumber" json:"cinNumber" validate:"required"`
	RegionID         string `form:"regionId" json:"regionId" validate:"required"`
	CityID           string `form:"cityId" json:"cityId" validate:"required"`
	Address          string `form:"address" json:"address" validate:"required"`
	PhoneNumber      string `form:"phoneNumber" json:"phoneNumber" validate:"required"`
	FirstSeizureDate string `form:"firstSeizureDate" json:"firstSeizureDate" validate:"required"`
	LastSeizureDate  string `form:"lastSeizureDate" json:"lastSeizureDate"`
	IsFirstSeizure   bool   `form:"isFirstSeizure" json:"isFirstSeizure"`
	SeizureDuration  string `form:"seizureDuration" json:"seizureDuration" validate:"required"`
	TotalSeizures    string `form:"totalSeizures" json:"totalSeizures"`

	SeizureFrequency  string     `form:"seizureFrequency" json:"seizureFrequency"`
	SeizureOccurrence Occurrence `form:"seizureOccurrence" json:"seizureOccurrence" validate:"required_with=SeizureFrequency,occurrence"`

	HasAura         bool        `form:"hasAura" json:"hasAura"`
	AuraDescription string      `form:"auraDescription" json:"auraDescription"`
	SeizureType     SeizureType `form:"seizureType" json:"seizureType" validate:"seizuretype"`

	Symptoms Symptoms `form:"symptoms" json:"symptoms"`

	OtherInformation string `form:"otherInformation" json:"otherInformation"`

	MRIPhoto     *Attachment `form:"-" json:"mriPhoto"`
	SeizureVideo *Attachment `form:"-" json:"seizureVideo"`
}

// Clone returns a deep copy so snapshots never alias attachment pointers.
func (f FormState) Clone() FormState {
	out := f
	if f.MRIPhoto != nil {
		photo := *f.MRIPhoto
		out.MRIPhoto = &photo
	}
	if f.SeizureVideo != nil {
		video := *f.SeizureVideo
		out.SeizureVideo = &video
	}
	return out
}

func (f FormState) Attachments() Attachments {
	return Attachments{Image: f.MRIPhoto, Video: f.SeizureVideo}
}
