package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"dreamsaver/internal/core"
	"dreamsaver/internal/imaging"
)

// DefaultViewportSize is the editor viewport assumed when a client sends a
// picture without crop parameters.
const DefaultViewportSize = 400

var (
	errTooLarge     = errors.New("request body too large")
	errBadBody      = errors.New("malformed request body")
	errBadMediaType = errors.New("unsupported content type")
)

// fieldErrors maps a JSON field name to the rule it broke.
type fieldErrors map[string]string

func (f fieldErrors) Error() string { return "validation failed" }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type cropRequest struct {
	Scale        float64 `json:"scale" validate:"gte=0"`
	OffsetX      float64 `json:"offsetX"`
	OffsetY      float64 `json:"offsetY"`
	ViewportSize float64 `json:"viewportSize" validate:"gte=0"`
}

type createGoalRequest struct {
	Title        string       `json:"title" validate:"required,max=100"`
	TargetAmount json.Number  `json:"targetAmount" validate:"required"`
	TargetDate   string       `json:"targetDate" validate:"required,datetime=2006-01-02"`
	Image        []byte       `json:"image"`
	Crop         *cropRequest `json:"crop"`
}

type transactionRequest struct {
	Amount json.Number `json:"amount" validate:"required"`
	Note   string      `json:"note" validate:"max=200"`
	Kind   string      `json:"kind" validate:"required,oneof=save withdraw"`
}

// structErrors runs the validator and flattens its failures.
func structErrors(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(fieldErrors, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if ns := fe.Namespace(); strings.Count(ns, ".") > 1 {
			name = ns[strings.Index(ns, ".")+1:]
		}
		fields[name] = fe.Tag()
	}
	return fields
}

// parseCreateGoal reads a goal from either a JSON body or a multipart form
// with an optional "image" file part.
func parseCreateGoal(r *http.Request, maxBytes int64) (core.GoalDraft, []byte, imaging.View, error) {
	var req createGoalRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return core.GoalDraft{}, nil, imaging.View{}, bodyError(err)
		}
		defer r.MultipartForm.RemoveAll()
		var err error
		if req, err = goalFromForm(r); err != nil {
			return core.GoalDraft{}, nil, imaging.View{}, err
		}
	case "application/json", "":
		if err := decodeJSON(r, &req); err != nil {
			return core.GoalDraft{}, nil, imaging.View{}, err
		}
	default:
		return core.GoalDraft{}, nil, imaging.View{}, errBadMediaType
	}

	req.Title = sanitizeInput(req.Title)
	if err := structErrors(req); err != nil {
		return core.GoalDraft{}, nil, imaging.View{}, err
	}

	amount, err := core.ParseMoney(req.TargetAmount.String())
	if err != nil {
		return core.GoalDraft{}, nil, imaging.View{}, fieldErrors{"targetAmount": "gt"}
	}
	date, err := core.ParseDate(req.TargetDate)
	if err != nil {
		return core.GoalDraft{}, nil, imaging.View{}, fieldErrors{"targetDate": "datetime"}
	}

	draft := core.GoalDraft{Title: req.Title, TargetAmount: amount, TargetDate: date}
	return draft, req.Image, viewFromCrop(req.Crop), nil
}

func goalFromForm(r *http.Request) (createGoalRequest, error) {
	req := createGoalRequest{
		Title:        r.FormValue("title"),
		TargetAmount: json.Number(strings.TrimSpace(r.FormValue("targetAmount"))),
		TargetDate:   strings.TrimSpace(r.FormValue("targetDate")),
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return req, bodyError(err)
	}
	defer file.Close()
	if req.Image, err = io.ReadAll(file); err != nil {
		return req, bodyError(err)
	}

	crop := &cropRequest{}
	fields := fieldErrors{}
	for name, dst := range map[string]*float64{
		"scale":        &crop.Scale,
		"offsetX":      &crop.OffsetX,
		"offsetY":      &crop.OffsetY,
		"viewportSize": &crop.ViewportSize,
	} {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fields["crop."+name] = "number"
			continue
		}
		*dst = f
	}
	if len(fields) > 0 {
		return req, fields
	}
	req.Crop = crop
	return req, nil
}

// viewFromCrop fills in the editor defaults for missing crop values.
func viewFromCrop(c *cropRequest) imaging.View {
	v := imaging.View{Scale: 1, ViewportSize: DefaultViewportSize}
	if c == nil {
		return v
	}
	if c.Scale > 0 {
		v.Scale = c.Scale
	}
	if c.ViewportSize > 0 {
		v.ViewportSize = c.ViewportSize
	}
	v.OffsetX, v.OffsetY = c.OffsetX, c.OffsetY
	return v
}

// parseTransaction reads a save or withdraw request. Amounts are positive;
// the kind decides the sign.
func parseTransaction(r *http.Request) (core.TransactionKind, core.Money, string, error) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", core.Money{}, "", err
	}
	req.Note = sanitizeInput(req.Note)
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if err := structErrors(req); err != nil {
		return "", core.Money{}, "", err
	}
	amount, err := core.ParseMoney(req.Amount.String())
	if err != nil {
		return "", core.Money{}, "", fieldErrors{"amount": "gt"}
	}
	return core.TransactionKind(req.Kind), amount, req.Note, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if dec.More() {
		return errBadBody
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, errTooLarge) {
		return errTooLarge
	}
	// ParseMultipartForm reports an oversize body as a plain message
	if strings.Contains(err.Error(), "request body too large") {
		return errTooLarge
	}
	return fmt.Errorf("%w: %v", errBadBody, err)
}
