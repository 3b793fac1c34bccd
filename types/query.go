package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type ProcessURLParams struct {
	URL string `json:"url" validate:"required,url"`
}

type SaveToDriveParams struct {
	Filename string `json:"filename" validate:"required"`
}

var validate = validator.New()

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ProcessURLParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *SaveToDriveParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		out := make(map[string]string)
		for _, e := range errs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return out
	}
	return nil
}

type SaveToDriveResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"fileId"`
	Name    string `json:"name"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
