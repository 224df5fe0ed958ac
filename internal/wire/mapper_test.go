package wire

import (
	"encoding/json"
	"testing"

	"neurolink/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDateForBackend(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{"", nil},
		{"   ", nil},
		{"2023-01-05", strPtr("2023-01-05")},
		{"05/01/2023", strPtr("2023-01-05")},
		{" 31/12/1999 ", strPtr("1999-12-31")},
		{"31/02/2020", nil},
		{"5/1/2023", nil},
		{"2023/01/05", nil},
		{"yesterday", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDateForBackend(tt.in))
		})
	}
}

func TestDateNormalizationIsIdempotent(t *testing.T) {
	for _, in := range []string{"01/01/2000", "2000-01-01", "29/02/2024", "1987-11-30"} {
		first := FormatDateForBackend(in)
		require.NotNil(t, first, in)

		parsed, ok := ParseDate(*first)
		require.True(t, ok)

		second := FormatDateForBackend(parsed.Format(BackendDateLayout))
		assert.Equal(t, first, second, in)
	}
}

func TestToWireFormatEmptyStateIsTotal(t *testing.T) {
	for _, variant := range []types.WireVariant{types.WireVariantWeb, types.WireVariantMobile} {
		var p types.WirePayload
		require.NotPanics(t, func() { p = ToWireFormat(types.FormState{}, variant) })

		assert.Nil(t, p.BirthDate)
		assert.Nil(t, p.Gender)
		assert.Nil(t, p.CINNumber)
		assert.Nil(t, p.RegionID)
		assert.Nil(t, p.CityID)
		assert.Nil(t, p.FirstSeizureDate)
		assert.Nil(t, p.LastSeizureDate)
		assert.Nil(t, p.SeizureFrequency)
		assert.Nil(t, p.SeizureDuration)
		assert.Nil(t, p.TotalSeizures)
		assert.Nil(t, p.AuraDescription)

		_, err := json.Marshal(p)
		require.NoError(t, err)
	}
}

func TestToWireFormatWeb(t *testing.T) {
	state := types.FormState{
		FullName:          " Amira Ben Salah ",
		BirthDate:         "12/03/1990",
		Gender:            types.GenderFemale,
		CINNumber:         "01234567",
		RegionID:          "3",
		CityID:            "301",
		Address:           "12 rue de Carthage",
		PhoneNumber:       "22123456",
		FirstSeizureDate:  "2024-02-01",
		SeizureDuration:   "4",
		TotalSeizures:     "abc",
		SeizureOccurrence: types.OccurrenceWeekly,
		HasAura:           false,
		AuraDescription:   "ignored without aura",
		SeizureType:       types.SeizureTypeAbsence,
		Symptoms: types.Symptoms{
			LossOfConsciousness: true,
			ClonicJerks:         true,
			LateralTongueBiting: true,
		},
	}

	p := ToWireFormat(state, types.WireVariantWeb)

	assert.Equal(t, "Amira Ben Salah", p.FullName)
	assert.Equal(t, "1990-03-12", *p.BirthDate)
	assert.Equal(t, "F", *p.Gender)
	assert.EqualValues(t, 1234567, *p.CINNumber)
	assert.EqualValues(t, 3, *p.RegionID)
	assert.EqualValues(t, 301, *p.CityID)
	assert.EqualValues(t, 4, *p.SeizureDuration)
	assert.Nil(t, p.TotalSeizures)
	assert.Equal(t, types.SeizureFrequencyWeekly, *p.SeizureFrequency)
	assert.Nil(t, p.AuraDescription)
	assert.Equal(t, "absence", *p.SeizureType)
	assert.Nil(t, p.SeizureTypes)
	assert.True(t, p.LossOfConsciousness)
	assert.True(t, *p.ClonicJerks)
	assert.True(t, *p.LateralTongueBiting)
	assert.False(t, *p.SuddenFall)
	assert.Nil(t, p.JerkingMovements)
	assert.Nil(t, p.TongueBiting)
}

func TestToWireFormatMobile(t *testing.T) {
	state := types.FormState{
		HasAura:         true,
		AuraDescription: "metallic taste",
		SeizureType:     types.SeizureTypeFocalWithoutLossOfConsciousness,
		Symptoms: types.Symptoms{
			ClonicJerks:          true,
			LateralTongueBiting:  true,
			TongueBitingLocation: types.TongueBitingLateral,
		},
	}

	p := ToWireFormat(state, types.WireVariantMobile)

	assert.Equal(t, "metallic taste", *p.AuraDescription)
	assert.Nil(t, p.SeizureType)
	assert.Equal(t, &types.LegacySeizureTypes{Focal: true}, p.SeizureTypes)
	assert.True(t, *p.JerkingMovements)
	assert.True(t, *p.TongueBiting)
	assert.Equal(t, "lateral", *p.TongueBitingLocation)
	assert.Nil(t, p.ClonicJerks)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "seizureTypes")
	assert.NotContains(t, decoded, "seizureType")
	assert.Contains(t, decoded, "governorate_id")
	assert.Nil(t, decoded["governorate_id"])
}

func TestFrequencyFromOccurrence(t *testing.T) {
	assert.Nil(t, FrequencyFromOccurrence(types.OccurrenceNone))
	assert.Nil(t, FrequencyFromOccurrence("yearly"))
	assert.Equal(t, types.SeizureFrequencyDaily, *FrequencyFromOccurrence(types.OccurrenceDaily))
	assert.Equal(t, types.SeizureFrequencyMonthly, *FrequencyFromOccurrence(types.OccurrenceMonthly))
}

func TestParseVariant(t *testing.T) {
	assert.Equal(t, types.WireVariantMobile, ParseVariant(" Mobile "))
	assert.Equal(t, types.WireVariantWeb, ParseVariant(""))
	assert.Equal(t, types.WireVariantWeb, ParseVariant("unknown"))
}

func strPtr(s string) *string { return &s }
