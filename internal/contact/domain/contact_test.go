package domain

import "testing"

func TestValidate_Primary(t *testing.T) {
	c := &Contact{Email: "a@example.com", LinkPrecedence: LinkPrecedencePrimary}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if !c.IsPrimary() {
		t.Error("IsPrimary() should be true for a primary contact")
	}
}

func TestValidate_PrimaryWithLinkedID(t *testing.T) {
	id := int64(7)
	c := &Contact{Email: "a@example.com", LinkPrecedence: LinkPrecedencePrimary, LinkedID: &id}
	if err := c.Validate(); err == nil {
		t.Error("primary with linked id should fail validation")
	}
}

func TestValidate_Secondary(t *testing.T) {
	id := int64(1)
	c := &Contact{PhoneNumber: "555", LinkPrecedence: LinkPrecedenceSecondary, LinkedID: &id}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if c.IsPrimary() {
		t.Error("IsPrimary() should be false for a secondary contact")
	}
}

func TestValidate_SecondaryWithoutLinkedID(t *testing.T) {
	c := &Contact{PhoneNumber: "555", LinkPrecedence: LinkPrecedenceSecondary}
	if err := c.Validate(); err == nil {
		t.Error("secondary without linked id should fail validation")
	}
}

func TestValidate_NoKeys(t *testing.T) {
	c := &Contact{LinkPrecedence: LinkPrecedencePrimary}
	if err := c.Validate(); err == nil {
		t.Error("contact with neither email nor phone should fail validation")
	}
}

func TestValidate_UnknownPrecedence(t *testing.T) {
	c := &Contact{Email: "a@example.com", LinkPrecedence: "tertiary"}
	if err := c.Validate(); err == nil {
		t.Error("unknown precedence should fail validation")
	}
}
