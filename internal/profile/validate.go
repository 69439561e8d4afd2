package profile

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/neurabot/neurabot/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Input はオンボーディングフォームの入力。
type Input struct {
	Name string     `json:"name" validate:"required,min=2"`
	Role model.Role `json:"role" validate:"required,oneof=patologi dokter_hewan"`
}

// Normalize は表示名の前後の空白を除去した入力を返す。
func (in Input) Normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Role = model.Role(strings.TrimSpace(string(in.Role)))
	return in
}

// Validate はフォーム入力を検証し、最初の違反をユーザー向けエラーとして返す。
// 入力は事前にNormalizeしておくこと。
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "Name":
		if fe.Tag() == "required" {
			return model.NewInvalidNameError("Please enter your name")
		}
		return model.NewInvalidNameError("Name must be at least 2 characters")
	default:
		return model.NewInvalidRoleError(string(in.Role))
	}
}

// saveRequest はプロフィール保存APIのリクエスト。表示名の長さは問わない。
type saveRequest struct {
	FullName string     `validate:"required"`
	Role     model.Role `validate:"required"`
}

// validateSaveRequest は必須項目の欠落とロールの列挙外を検出する。
func validateSaveRequest(fullName string, role model.Role) error {
	err := validate.Struct(saveRequest{FullName: fullName, Role: role})
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		missing := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			missing = append(missing, jsonFieldName(fe.Field()))
		}
		return model.NewMissingFieldsError(strings.Join(missing, ", "))
	}
	if !role.Valid() {
		return model.NewInvalidRoleError(string(role))
	}
	return nil
}

func jsonFieldName(field string) string {
	switch field {
	case "FullName":
		return "fullName"
	case "Role":
		return "role"
	default:
		return field
	}
}
