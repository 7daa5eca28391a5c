// Package bind decodes a dispatch request body into a struct and runs
// the declarative checks from its `validate` tags (see pkg/validate for
// the rule set).
//
//	type createInput struct {
//		Name  string `json:"name"  validate:"required,min=2"`
//		Email string `json:"email" validate:"required,email"`
//	}
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/setulabs/setu/pkg/validate"
)

// Bodies above this size are rejected before decoding.
const maxBodyBytes = 4 << 20

// JSON decodes body into dest and validates it. It returns (errs, nil)
// when fields fail validation, (nil, err) when the body is empty,
// malformed, or too large, and (nil, nil) on success.
func JSON(body string, dest any) (map[string]string, error) {
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("request body too large (max %d bytes)", maxBodyBytes)
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("empty request body")
	}

	if err := json.Unmarshal([]byte(body), dest); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
