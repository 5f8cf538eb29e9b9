package validation

import (
	"regexp"

	validatorv10 "github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,12}$`)

// New returns a validator with the custom tags used by the request types.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	_ = v.RegisterValidation("phone", validatePhone)
	v.RegisterStructValidation(updateProfileStructValidation, UpdateProfileRequest{})
	return v
}

func validatePhone(fl validatorv10.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// updateProfileStructValidation rejects an update that changes nothing.
func updateProfileStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateProfileRequest)
	if req.FullName == "" && req.Email == "" && req.Phone == "" && req.Address == "" {
		sl.ReportError(req.FullName, "full_name", "FullName", "profile_not_empty", "")
	}
}
