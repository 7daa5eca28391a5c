package validate_test

import (
	"testing"

	"github.com/setulabs/setu/pkg/validate"
)

type createInput struct {
	Name     string  `json:"name"     validate:"required,alpha_dash,min=2,max=50"`
	Email    string  `json:"email"    validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Age      int     `json:"age"      validate:"required,gte=18,lte=120"`
	Role     string  `json:"role"     validate:"nullable,in=user,admin"`
	Score    float64 `json:"score"    validate:"required,between=0,100"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(createInput{
		Name:     "jane_doe",
		Email:    "jane@example.com",
		Password: "secret123",
		Age:      25,
		Role:     "", // nullable
		Score:    85.5,
	})
	if validate.HasErrors(errs) {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(createInput{})
	if !validate.HasErrors(errs) {
		t.Fatal("expected required errors")
	}
	if errs["name"] != "The name field is required." {
		t.Errorf("name message = %q", errs["name"])
	}
	if _, ok := errs["email"]; !ok {
		t.Error("expected email to be required")
	}
}

func TestFirstFailingRuleWins(t *testing.T) {
	// "x" passes required and alpha_dash but fails min=2; only one
	// message per field is reported.
	errs := validate.Struct(createInput{Name: "x"})
	if errs["name"] != "The name must be at least 2 characters." {
		t.Errorf("name message = %q", errs["name"])
	}
}

func TestEmailRule(t *testing.T) {
	type in struct {
		Email string `json:"email" validate:"required,email"`
	}
	if errs := validate.Struct(in{Email: "not-an-email"}); !validate.HasErrors(errs) {
		t.Error("expected email validation error")
	}
	if errs := validate.Struct(in{Email: "valid@example.com"}); validate.HasErrors(errs) {
		t.Errorf("expected valid email to pass, got: %v", errs)
	}
}

func TestNumericBounds(t *testing.T) {
	type in struct {
		Age int `json:"age" validate:"required,gte=18,lte=120"`
	}
	if errs := validate.Struct(in{Age: 15}); !validate.HasErrors(errs) {
		t.Error("expected age < 18 to fail")
	}
	if errs := validate.Struct(in{Age: 121}); !validate.HasErrors(errs) {
		t.Error("expected age > 120 to fail")
	}
	if errs := validate.Struct(in{Age: 25}); validate.HasErrors(errs) {
		t.Errorf("expected age 25 to pass, got: %v", errs)
	}
}

func TestInRule(t *testing.T) {
	type in struct {
		Role string `json:"role" validate:"required,in=user,admin"`
	}
	errs := validate.Struct(in{Role: "superadmin"})
	if errs["role"] != "The selected role is invalid." {
		t.Errorf("role message = %q", errs["role"])
	}
	if errs := validate.Struct(in{Role: "admin"}); validate.HasErrors(errs) {
		t.Errorf("expected admin to pass: %v", errs)
	}
}

func TestInRuleFollowedByAnotherRule(t *testing.T) {
	// The comma list in the in= parameter must not swallow the max rule.
	type in struct {
		Role string `json:"role" validate:"in=user,admin,max=5"`
	}
	if errs := validate.Struct(in{Role: "admin"}); validate.HasErrors(errs) {
		t.Errorf("expected admin to pass: %v", errs)
	}
	if errs := validate.Struct(in{Role: "nobody"}); !validate.HasErrors(errs) {
		t.Error("expected unknown role to fail")
	}
}

func TestNullableSkipsRules(t *testing.T) {
	type in struct {
		Role string `json:"role" validate:"nullable,in=user,admin"`
	}
	if errs := validate.Struct(in{Role: ""}); validate.HasErrors(errs) {
		t.Errorf("expected empty nullable to pass: %v", errs)
	}
	if errs := validate.Struct(in{Role: "other"}); !validate.HasErrors(errs) {
		t.Error("expected invalid non-empty value to fail")
	}
}

func TestBetweenRule(t *testing.T) {
	type in struct {
		Score float64 `json:"score" validate:"required,between=0,100"`
		Code  string  `json:"code"  validate:"nullable,between=2,4"`
	}
	if errs := validate.Struct(in{Score: 150}); !validate.HasErrors(errs) {
		t.Error("expected score > 100 to fail")
	}
	if errs := validate.Struct(in{Score: 75}); validate.HasErrors(errs) {
		t.Errorf("expected score 75 to pass: %v", errs)
	}
	if errs := validate.Struct(in{Score: 75, Code: "abcde"}); !validate.HasErrors(errs) {
		t.Error("expected 5-character code to fail between=2,4")
	}
}

func TestAlphaDashRule(t *testing.T) {
	type in struct {
		Slug string `json:"slug" validate:"required,alpha_dash"`
	}
	if errs := validate.Struct(in{Slug: "hello-world_123"}); validate.HasErrors(errs) {
		t.Errorf("expected alpha_dash to pass: %v", errs)
	}
	if errs := validate.Struct(in{Slug: "hello world!"}); !validate.HasErrors(errs) {
		t.Error("expected alpha_dash to fail for spaces/punctuation")
	}
}

func TestNonStructPasses(t *testing.T) {
	if errs := validate.Struct("just a string"); validate.HasErrors(errs) {
		t.Errorf("expected non-struct to pass, got: %v", errs)
	}
}
