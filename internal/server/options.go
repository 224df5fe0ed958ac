package server

import (
	"strconv"

	"neurolink/internal/media"
	"neurolink/pkg/types"
)

var occurrenceLabels = map[types.Occurrence]string{
	types.OccurrenceDaily:   "Per day",
	types.OccurrenceWeekly:  "Per week",
	types.OccurrenceMonthly: "Per month",
}

var seizureTypeLabels = map[types.SeizureType]string{
	types.SeizureTypeGeneralizedTonicClonic:          "Generalized tonic-clonic",
	types.SeizureTypeGeneralizedOther:                "Other generalized",
	types.SeizureTypeAbsence:                         "Absence",
	types.SeizureTypeFocalWithLossOfConsciousness:    "Focal with loss of consciousness",
	types.SeizureTypeFocalWithoutLossOfConsciousness: "Focal without loss of consciousness",
	types.SeizureTypeMyoclonic:                       "Myoclonic",
	types.SeizureTypeAtonic:                          "Atonic",
}

type symptomLabel struct {
	name  string
	label string
	value func(types.Symptoms) bool
}

// Rendered in this order.
var symptomLabels = []symptomLabel{
	{"lossOfConsciousness", "Loss of consciousness", func(s types.Symptoms) bool { return s.LossOfConsciousness }},
	{"progressiveFall", "Progressive fall", func(s types.Symptoms) bool { return s.ProgressiveFall }},
	{"suddenFall", "Sudden fall", func(s types.Symptoms) bool { return s.SuddenFall }},
	{"bodyStiffening", "Body stiffening", func(s types.Symptoms) bool { return s.BodyStiffening }},
	{"clonicJerks", "Clonic jerks", func(s types.Symptoms) bool { return s.ClonicJerks }},
	{"automatisms", "Automatisms", func(s types.Symptoms) bool { return s.Automatisms }},
	{"eyeDeviation", "Eye deviation", func(s types.Symptoms) bool { return s.EyeDeviation }},
	{"activityStop", "Activity stop", func(s types.Symptoms) bool { return s.ActivityStop }},
	{"sensitiveDisorders", "Sensitive disorders", func(s types.Symptoms) bool { return s.SensitiveDisorders }},
	{"sensoryDisorders", "Sensory disorders", func(s types.Symptoms) bool { return s.SensoryDisorders }},
	{"incontinence", "Urinary incontinence", func(s types.Symptoms) bool { return s.Incontinence }},
	{"lateralTongueBiting", "Tongue biting", func(s types.Symptoms) bool { return s.LateralTongueBiting }},
}

func regionOptions(regions []types.Region, selected string) []types.Option {
	out := make([]types.Option, 0, len(regions))
	for _, r := range regions {
		id := strconv.FormatInt(r.ID, 10)
		out = append(out, types.Option{Value: id, Label: r.Name, Selected: id == selected})
	}
	return out
}

func cityOptions(cities []types.City, selected string) []types.Option {
	out := make([]types.Option, 0, len(cities))
	for _, c := range cities {
		id := strconv.FormatInt(c.ID, 10)
		out = append(out, types.Option{Value: id, Label: c.Name, Selected: id == selected})
	}
	return out
}

func occurrenceOptions(selected types.Occurrence) []types.Option {
	out := make([]types.Option, 0, len(types.Occurrences))
	for _, o := range types.Occurrences {
		out = append(out, types.Option{Value: string(o), Label: occurrenceLabels[o], Selected: o == selected})
	}
	return out
}

func seizureTypeOptions(selected types.SeizureType) []types.Option {
	out := make([]types.Option, 0, len(types.SeizureTypes))
	for _, t := range types.SeizureTypes {
		out = append(out, types.Option{Value: string(t), Label: seizureTypeLabels[t], Selected: t == selected})
	}
	return out
}

func symptomFields(symptoms types.Symptoms) []types.SymptomField {
	out := make([]types.SymptomField, 0, len(symptomLabels))
	for _, l := range symptomLabels {
		out = append(out, types.SymptomField{
			Name:    "symptoms." + l.name,
			Label:   l.label,
			Checked: l.value(symptoms),
		})
	}
	return out
}

func mediaField(kind media.Kind, attachment *types.Attachment) types.MediaField {
	field := types.MediaField{Kind: string(kind), Attachment: attachment}

	switch kind {
	case media.KindImage:
		field.Label = "MRI photo"
		field.Accept = "image/jpeg,image/png"
		field.Hint = "JPEG or PNG, up to 10 MB."
	case media.KindVideo:
		field.Label = "Seizure video"
		field.Accept = "video/mp4,video/quicktime,video/x-msvideo"
		field.Hint = "MP4, MOV or AVI, up to 5 minutes and 250 MB."
	}

	return field
}
