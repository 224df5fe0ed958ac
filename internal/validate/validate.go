// Package validate checks whether an intake form can be submitted.
package validate

import (
	"errors"
	"strings"

	"neurolink/pkg/types"

	"github.com/go-playground/validator/v10"
)

// Messages shown for each failing field, keyed by struct field name.
const (
	MsgFullName          = "Full name is required."
	MsgBirthDate         = "Birth date is required."
	MsgGender            = "Gender is required."
	MsgCINNumber         = "National ID number is required."
	MsgRegion            = "Region is required."
	MsgCity              = "City is required."
	MsgAddress           = "Address is required."
	MsgPhoneNumber       = "Phone number is required."
	MsgFirstSeizureDate  = "First seizure date is required."
	MsgSeizureDuration   = "Seizure duration is required."
	MsgOccurrenceMissing = "Seizure occurrence type is missing (daily, weekly, monthly)."

	MsgGenderInvalid       = "Gender must be M or F."
	MsgOccurrenceInvalid   = "Seizure occurrence must be daily, weekly or monthly."
	MsgSeizureTypeInvalid  = "Seizure type is not recognised."
	MsgTongueBitingInvalid = "Tongue biting location must be lateral or tip."
)

var fieldMessages = map[string]string{
	"FullName":          MsgFullName,
	"BirthDate":         MsgBirthDate,
	"Gender":            MsgGender,
	"CINNumber":         MsgCINNumber,
	"RegionID":          MsgRegion,
	"CityID":            MsgCity,
	"Address":           MsgAddress,
	"PhoneNumber":       MsgPhoneNumber,
	"FirstSeizureDate":  MsgFirstSeizureDate,
	"SeizureDuration":   MsgSeizureDuration,
	"SeizureOccurrence": MsgOccurrenceMissing,
}

// Messages for values outside an enum, keyed by struct field name.
var enumMessages = map[string]string{
	"Gender":               MsgGenderInvalid,
	"SeizureOccurrence":    MsgOccurrenceInvalid,
	"SeizureType":          MsgSeizureTypeInvalid,
	"TongueBitingLocation": MsgTongueBitingInvalid,
}

// RequiredMessages lists the required-field messages in check order.
var RequiredMessages = []string{
	MsgFullName,
	MsgBirthDate,
	MsgGender,
	MsgCINNumber,
	MsgRegion,
	MsgCity,
	MsgAddress,
	MsgPhoneNumber,
	MsgFirstSeizureDate,
	MsgSeizureDuration,
}

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Empty values pass; required tags decide whether one must be chosen.
	_ = v.RegisterValidation("occurrence", func(fl validator.FieldLevel) bool {
		return types.Occurrence(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("seizuretype", func(fl validator.FieldLevel) bool {
		return types.SeizureType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("tonguebiting", func(fl validator.FieldLevel) bool {
		switch types.TongueBitingLocation(fl.Field().String()) {
		case types.TongueBitingNone, types.TongueBitingLateral, types.TongueBitingTip:
			return true
		}
		return false
	})

	return v
}

// Validate returns the user facing errors for state, empty when the form is
// submittable. Whitespace-only values count as empty.
func Validate(state types.FormState) []string {
	err := v.Struct(trimmed(state))
	if err == nil {
		return []string{}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		messages := fieldMessages
		if e.Tag() != "required" && e.Tag() != "required_with" {
			messages = enumMessages
		}
		msg, ok := messages[e.StructField()]
		if !ok {
			msg = e.Field() + " is invalid."
		}
		out = append(out, msg)
	}

	return out
}

func trimmed(state types.FormState) types.FormState {
	state.FullName = strings.TrimSpace(state.FullName)
	state.BirthDate = strings.TrimSpace(state.BirthDate)
	state.Gender = types.Gender(strings.TrimSpace(string(state.Gender)))
	state.CINNumber = strings.TrimSpace(state.CINNumber)
	state.RegionID = strings.TrimSpace(state.RegionID)
	state.CityID = strings.TrimSpace(state.CityID)
	state.Address = strings.TrimSpace(state.Address)
	state.PhoneNumber = strings.TrimSpace(state.PhoneNumber)
	state.FirstSeizureDate = strings.TrimSpace(state.FirstSeizureDate)
	state.SeizureDuration = strings.TrimSpace(state.SeizureDuration)
	state.SeizureFrequency = strings.TrimSpace(state.SeizureFrequency)
	return state
}
