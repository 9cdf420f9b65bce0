package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldValue is the tagged value union for a request field. The tag is the
// form field's declared type; exactly one typed slot is populated.
// FILE_UPLOAD fields carry no value here, they are satisfied by attachments.
type FieldValue struct {
	Type     FieldType        `json:"type"`
	Text     *string          `json:"value_text,omitempty"`
	Number   *decimal.Decimal `json:"value_number,omitempty"`
	Bool     *bool            `json:"value_bool,omitempty"`
	Date     *time.Time       `json:"value_date,omitempty"`
	Dropdown *string          `json:"value_dropdown,omitempty"`
}

// TextValue builds a TEXT field value.
func TextValue(s string) FieldValue {
	return FieldValue{Type: FieldTypeText, Text: &s}
}

// NumberValue builds a NUMBER field value.
func NumberValue(d decimal.Decimal) FieldValue {
	return FieldValue{Type: FieldTypeNumber, Number: &d}
}

// BoolValue builds a BOOLEAN field value.
func BoolValue(b bool) FieldValue {
	return FieldValue{Type: FieldTypeBoolean, Bool: &b}
}

// DateValue builds a DATE field value.
func DateValue(t time.Time) FieldValue {
	return FieldValue{Type: FieldTypeDate, Date: &t}
}

// DropdownValue builds a DROPDOWN field value.
func DropdownValue(option string) FieldValue {
	return FieldValue{Type: FieldTypeDropdown, Dropdown: &option}
}

// slots returns the populated slot count.
func (v FieldValue) slots() int {
	n := 0
	if v.Text != nil {
		n++
	}
	if v.Number != nil {
		n++
	}
	if v.Bool != nil {
		n++
	}
	if v.Date != nil {
		n++
	}
	if v.Dropdown != nil {
		n++
	}
	return n
}

// Validate enforces the single-slot invariant and tag/slot agreement.
func (v FieldValue) Validate() error {
	if v.slots() > 1 {
		return fmt.Errorf("field value has %d populated slots, want at most 1", v.slots())
	}
	switch v.Type {
	case FieldTypeText:
		if v.slots() == 1 && v.Text == nil {
			return fmt.Errorf("TEXT value populated in wrong slot")
		}
	case FieldTypeNumber:
		if v.slots() == 1 && v.Number == nil {
			return fmt.Errorf("NUMBER value populated in wrong slot")
		}
	case FieldTypeBoolean:
		if v.slots() == 1 && v.Bool == nil {
			return fmt.Errorf("BOOLEAN value populated in wrong slot")
		}
	case FieldTypeDate:
		if v.slots() == 1 && v.Date == nil {
			return fmt.Errorf("DATE value populated in wrong slot")
		}
	case FieldTypeDropdown:
		if v.slots() == 1 && v.Dropdown == nil {
			return fmt.Errorf("DROPDOWN value populated in wrong slot")
		}
	case FieldTypeFileUpload:
		if v.slots() != 0 {
			return fmt.Errorf("FILE_UPLOAD fields carry no inline value")
		}
	default:
		return fmt.Errorf("unknown field type %q", v.Type)
	}
	return nil
}

// Empty reports whether the value counts as unset for required-field
// validation. Whitespace-only text is empty; a false BOOLEAN is not.
func (v FieldValue) Empty() bool {
	switch v.Type {
	case FieldTypeText:
		return v.Text == nil || strings.TrimSpace(*v.Text) == ""
	case FieldTypeNumber:
		return v.Number == nil
	case FieldTypeBoolean:
		return v.Bool == nil
	case FieldTypeDate:
		return v.Date == nil
	case FieldTypeDropdown:
		return v.Dropdown == nil || strings.TrimSpace(*v.Dropdown) == ""
	default:
		return true
	}
}

// Render returns the value as a display string for audit diffs.
func (v FieldValue) Render() string {
	switch {
	case v.Text != nil:
		return *v.Text
	case v.Number != nil:
		return v.Number.String()
	case v.Bool != nil:
		return fmt.Sprintf("%t", *v.Bool)
	case v.Date != nil:
		return v.Date.UTC().Format(time.RFC3339)
	case v.Dropdown != nil:
		return *v.Dropdown
	}
	return ""
}
