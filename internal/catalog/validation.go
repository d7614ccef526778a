package catalog

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

func (s *Service) validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, describe(err))
	}
	return nil
}

func (s *Service) validateShop(shop Shop) error {
	if err := s.validate.Struct(shop); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidShop, describe(err))
	}
	return nil
}

func describe(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, strings.ToLower(fe.Field())+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s exceeds %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fe.Error())
		}
	}
	return strings.Join(parts, "; ")
}
