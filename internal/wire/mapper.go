// Package wire shapes a FormState into the JSON the referral backend expects.
package wire

import (
	"strconv"
	"strings"

	"neurolink/internal/utils"
	"neurolink/pkg/types"
)

// ParseVariant maps a config value onto a wire variant, defaulting to web.
func ParseVariant(s string) types.WireVariant {
	if types.WireVariant(strings.ToLower(strings.TrimSpace(s))) == types.WireVariantMobile {
		return types.WireVariantMobile
	}
	return types.WireVariantWeb
}

// ToWireFormat is total: any FormState, valid or not, maps to a payload.
func ToWireFormat(state types.FormState, variant types.WireVariant) types.WirePayload {
	p := types.WirePayload{
		FullName:    strings.TrimSpace(state.FullName),
		BirthDate:   FormatDateForBackend(state.BirthDate),
		Gender:      nonEmpty(string(state.Gender)),
		CINNumber:   parseInteger(state.CINNumber),
		RegionID:    parseInteger(state.RegionID),
		CityID:      parseInteger(state.CityID),
		Address:     strings.TrimSpace(state.Address),
		PhoneNumber: strings.TrimSpace(state.PhoneNumber),

		FirstSeizureDate: FormatDateForBackend(state.FirstSeizureDate),
		LastSeizureDate:  FormatDateForBackend(state.LastSeizureDate),
		IsFirstSeizure:   state.IsFirstSeizure,
		SeizureFrequency: FrequencyFromOccurrence(state.SeizureOccurrence),
		SeizureDuration:  parseInteger(state.SeizureDuration),
		TotalSeizures:    parseInteger(state.TotalSeizures),

		HasAura: state.HasAura,

		LossOfConsciousness: state.Symptoms.LossOfConsciousness,
		BodyStiffening:      state.Symptoms.BodyStiffening,
		EyeDeviation:        state.Symptoms.EyeDeviation,
		Incontinence:        state.Symptoms.Incontinence,

		OtherInformation: strings.TrimSpace(state.OtherInformation),
	}

	if state.HasAura {
		p.AuraDescription = nonEmpty(state.AuraDescription)
	}

	switch variant {
	case types.WireVariantMobile:
		mapMobile(&p, state)
	default:
		mapWeb(&p, state)
	}

	return p
}

func mapWeb(p *types.WirePayload, state types.FormState) {
	s := state.Symptoms

	p.SeizureType = nonEmpty(string(state.SeizureType))
	p.ProgressiveFall = utils.BoolPtr(s.ProgressiveFall)
	p.SuddenFall = utils.BoolPtr(s.SuddenFall)
	p.ClonicJerks = utils.BoolPtr(s.ClonicJerks)
	p.Automatisms = utils.BoolPtr(s.Automatisms)
	p.ActivityStop = utils.BoolPtr(s.ActivityStop)
	p.SensitiveDisorders = utils.BoolPtr(s.SensitiveDisorders)
	p.SensoryDisorders = utils.BoolPtr(s.SensoryDisorders)
	p.LateralTongueBiting = utils.BoolPtr(s.LateralTongueBiting)
}

func mapMobile(p *types.WirePayload, state types.FormState) {
	s := state.Symptoms

	p.SeizureTypes = LegacySeizureTypes(state.SeizureType)
	p.JerkingMovements = utils.BoolPtr(s.ClonicJerks)
	p.TongueBiting = utils.BoolPtr(s.LateralTongueBiting)
	if s.LateralTongueBiting {
		p.TongueBitingLocation = nonEmpty(string(s.TongueBitingLocation))
	}
}

// FrequencyFromOccurrence derives the backend enum, nil when not chosen.
func FrequencyFromOccurrence(o types.Occurrence) *types.SeizureFrequency {
	var f types.SeizureFrequency
	switch o {
	case types.OccurrenceDaily:
		f = types.SeizureFrequencyDaily
	case types.OccurrenceWeekly:
		f = types.SeizureFrequencyWeekly
	case types.OccurrenceMonthly:
		f = types.SeizureFrequencyMonthly
	default:
		return nil
	}
	return &f
}

// LegacySeizureTypes maps the single choice onto the mobile boolean group.
// Both generalized kinds map to tonicClonic and both focal kinds to focal,
// the closest legacy categories.
func LegacySeizureTypes(t types.SeizureType) *types.LegacySeizureTypes {
	out := new(types.LegacySeizureTypes)
	switch t {
	case types.SeizureTypeGeneralizedTonicClonic, types.SeizureTypeGeneralizedOther:
		out.TonicClonic = true
	case types.SeizureTypeAbsence:
		out.Absence = true
	case types.SeizureTypeFocalWithLossOfConsciousness, types.SeizureTypeFocalWithoutLossOfConsciousness:
		out.Focal = true
	case types.SeizureTypeMyoclonic:
		out.Myoclonic = true
	case types.SeizureTypeAtonic:
		out.Atonic = true
	}
	return out
}

// parseInteger returns nil for empty or non-numeric input. Empty counts are
// sent as absent rather than zero.
func parseInteger(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return utils.Int64Ptr(n)
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return utils.StringPtr(s)
}
