package chi

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
)

const (
	maxPayloadFields = 64
	maxTextLen       = 65535
)

// payloadValidator checks write bodies against an entity's declared fields
// before they reach the system of record.
type payloadValidator struct {
	v *validator.Validate
}

func newPayloadValidator() *payloadValidator {
	return &payloadValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate rejects empty bodies, unknown or read-only keys, and values whose
// type does not match the field kind. Null clears a field.
func (p *payloadValidator) Validate(desc *entity.Descriptor, values map[string]any) error {
	if err := p.v.Var(values, fmt.Sprintf("required,min=1,max=%d", maxPayloadFields)); err != nil {
		return fmt.Errorf("%w: body must be an object with 1 to %d fields", domain.ErrInvalidPayload, maxPayloadFields)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == entity.IDField {
			return fmt.Errorf("%w: %q is read-only", domain.ErrInvalidPayload, key)
		}
		attr, ok := desc.Lookup(key)
		if !ok || attr.Flattened() {
			return fmt.Errorf("%w: %q is not a writable field of %s", domain.ErrInvalidPayload, key, desc.Name)
		}
		v := values[key]
		if v == nil {
			continue
		}
		if err := p.field(attr.Field, v); err != nil {
			return fmt.Errorf("%w: field %q: %w", domain.ErrInvalidPayload, key, err)
		}
	}
	return nil
}

func (p *payloadValidator) field(f entity.Field, v any) error {
	switch f.Kind {
	case entity.Numeric:
		if _, ok := v.(float64); !ok {
			return errors.New("must be a number")
		}
		if f.Rule == entity.Reference {
			return describe(p.v.Var(v, "gt=0"), "must be a positive id")
		}
	case entity.Bool:
		if _, ok := v.(bool); !ok {
			return errors.New("must be a boolean")
		}
	case entity.Time:
		s, ok := v.(string)
		if !ok {
			return errors.New("must be an RFC 3339 timestamp")
		}
		return describe(p.v.Var(s, "datetime=2006-01-02T15:04:05Z07:00"), "must be an RFC 3339 timestamp")
	case entity.Text, entity.Tag:
		switch x := v.(type) {
		case string:
			return describe(p.v.Var(x, fmt.Sprintf("max=%d", maxTextLen)), fmt.Sprintf("longer than %d", maxTextLen))
		case map[string]any, []any:
			// structured settings columns
		default:
			return errors.New("must be a string")
		}
	}
	return nil
}

func describe(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.New(msg)
}
