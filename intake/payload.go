package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Date accepts "2006-01-02", RFC 3339 timestamps or epoch milliseconds and
// normalises them to a calendar date at UTC midnight. Malformed input does
// not fail decoding; validation reports it instead.
type Date struct {
	t     time.Time
	set   bool
	valid bool
}

// maxEpochMillis is the largest distance from the epoch a JavaScript Date can
// represent.
const maxEpochMillis = 8.64e15

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func NewDate(t time.Time) Date {
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), set: true, valid: true}
}

// coerce keeps d set but invalid when t falls outside years 1 to 9999.
func (d *Date) coerce(t time.Time) {
	if t = t.UTC(); t.Year() < 1 || t.Year() > 9999 {
		return
	}
	*d = NewDate(t)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	*d = Date{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	d.set = true

	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				d.coerce(t)
				return nil
			}
		}
		return nil
	}

	if ms, err := strconv.ParseInt(string(b), 10, 64); err == nil && ms >= -maxEpochMillis && ms <= maxEpochMillis {
		d.coerce(time.UnixMilli(ms))
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.t.Format("2006-01-02"))
}

// Time returns the normalised date.
func (d Date) Time() time.Time { return d.t }

type RegistrantInput struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	DateOfBirth  Date   `json:"date_of_birth" binding:"required,date"`
	PlaceOfBirth string `json:"place_of_birth" binding:"required"`
}

type ParticipantInput struct {
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	DateOfBirth Date   `json:"date_of_birth" binding:"required,date"`
}

type VesselInput struct {
	Name         string `json:"name" binding:"required"`
	Type         string `json:"type" binding:"required"`
	VesselTypeID string `json:"vessel_type_id" binding:"required"`
}

// Payload is the body of POST /api/registration.
type Payload struct {
	MusicRequest *string `json:"music_request"`
	Association  *string `json:"association"`
	// Older forms post the misspelled key.
	LegacyAssociation *string `json:"assosciation"`

	Registrant   RegistrantInput    `json:"registrant"`
	Participants []ParticipantInput `json:"participants" binding:"required,dive"`
	Vessel       VesselInput        `json:"vessel"`
	Event        string             `json:"event" binding:"required"`
}

// association prefers the correctly spelled key.
func (p *Payload) association() *string {
	if p.Association != nil {
		return p.Association
	}
	return p.LegacyAssociation
}

// Issue is a single validation problem, addressed by its JSON path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string { return i.Path + ": " + i.Message }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Missing dates surface as nil so "required" fails; malformed ones as a
	// string so "date" fails.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d := field.Interface().(Date)
		switch {
		case !d.set:
			return nil
		case !d.valid:
			return "invalid"
		default:
			return d.t
		}
	}, Date{})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, ok := fl.Field().Interface().(time.Time)
		return ok
	})
	return v
}

// Parse decodes and validates a registration body. Every problem found is
// returned; a non-empty result means the payload must be rejected.
func Parse(body []byte) (Payload, []Issue) {
	var p Payload
	var issues []Issue

	// typed is the index-free path of the type error encoding/json reports.
	var typed string
	if err := json.Unmarshal(body, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return p, []Issue{{Path: "body", Message: "Malformed JSON"}}
		}
		if typeErr.Field == "" {
			return p, []Issue{{Path: "body", Message: "Expected " + typeErr.Type.String() + ", received " + typeErr.Value}}
		}
		// Unmarshal keeps going after a type mismatch; validate the rest.
		typed = typeErr.Field
		issues = append(issues, Issue{Path: typed, Message: "Expected " + typeErr.Type.String() + ", received " + typeErr.Value})
	}

	err := validate.Struct(p)
	if err == nil {
		return p, issues
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return p, append(issues, Issue{Path: "body", Message: err.Error()})
	}

	// encoding/json only reports the first mismatch, so later ones show up
	// here as zero values. Look at what was actually sent.
	var raw any
	_ = json.Unmarshal(body, &raw)

	for _, fe := range verrs {
		path := issuePath(fe.Namespace())
		if typed != "" && under(stripIndexes(path), typed) {
			continue
		}
		msg := issueMessage(fe.Tag())
		if fe.Tag() == "required" {
			if v, ok := lookupJSON(raw, path); ok && v != nil {
				if got := jsonKind(v); got != expectedKind(fe.Kind()) {
					msg = "Expected " + fe.Type().String() + ", received " + got
				}
			}
		}
		issues = append(issues, Issue{Path: path, Message: msg})
	}
	return p, issues
}

// issuePath drops the root struct name: "Payload.registrant.email" → "registrant.email".
func issuePath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func issueMessage(tag string) string {
	switch tag {
	case "required":
		return "Required"
	case "email":
		return "Invalid email"
	case "date":
		return "Invalid date"
	default:
		return "Invalid value (" + tag + ")"
	}
}

// under reports whether path is prefix or lies below it.
func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+".")
}

// stripIndexes turns "participants[0].first_name" into "participants.first_name".
func stripIndexes(path string) string {
	var b strings.Builder
	depth := 0
	for _, r := range path {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lookupJSON follows a validator path such as "participants[1].last_name"
// through a generically decoded document.
func lookupJSON(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		name, idx, hasIdx := strings.Cut(seg, "[")
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[name]; !ok {
			return nil, false
		}
		if !hasIdx {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSuffix(idx, "]"))
		arr, ok := cur.([]any)
		if err != nil || !ok || i < 0 || i >= len(arr) {
			return nil, false
		}
		cur = arr[i]
	}
	return cur, true
}

// jsonKind names a decoded value the way encoding/json type errors do.
func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "null"
	}
}

func expectedKind(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Bool:
		return "bool"
	case reflect.Invalid:
		return ""
	default:
		return "number"
	}
}
