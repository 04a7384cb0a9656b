package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const (
	MethodInitialize      = "initialize"
	MethodProcessFrame    = "processFrame"
	MethodStartLiveStream = "startLiveStream"
	MethodStopLiveStream  = "stopLiveStream"
	MethodDispose         = "dispose"
)

type Request struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response carries exactly one of OK and Error.
type Response struct {
	OK    any        `json:"ok,omitempty"`
	Error *CallError `json:"error,omitempty"`
}

func okResponse(v any) Response {
	return Response{OK: v}
}

func errorResponse(code, message string) Response {
	return Response{Error: NewCallError(code, message)}
}

// InitializeArgs mirrors SessionConfig; absent fields take the defaults.
type InitializeArgs struct {
	ModelPath              *string  `json:"modelPath"`
	Delegate               *string  `json:"delegate"`
	NumPoses               *int     `json:"numPoses"`
	MinDetectionConfidence *float64 `json:"minDetectionConfidence"`
	MinPresenceConfidence  *float64 `json:"minPresenceConfidence"`
	MinTrackingConfidence  *float64 `json:"minTrackingConfidence"`
	RunningMode            *string  `json:"runningMode"`
}

func (a InitializeArgs) Config() pose.SessionConfig {
	cfg := pose.DefaultSessionConfig()
	if a.ModelPath != nil {
		cfg.ModelPath = *a.ModelPath
	}
	if a.Delegate != nil {
		cfg.Delegate = pose.Delegate(strings.ToUpper(*a.Delegate))
	}
	if a.NumPoses != nil {
		cfg.MaxPoses = *a.NumPoses
	}
	if a.MinDetectionConfidence != nil {
		cfg.MinDetectionConfidence = *a.MinDetectionConfidence
	}
	if a.MinPresenceConfidence != nil {
		cfg.MinPresenceConfidence = *a.MinPresenceConfidence
	}
	if a.MinTrackingConfidence != nil {
		cfg.MinTrackingConfidence = *a.MinTrackingConfidence
	}
	if a.RunningMode != nil {
		cfg.Mode = pose.Mode(strings.ToUpper(*a.RunningMode))
	}
	return cfg
}

type ProcessFrameArgs struct {
	ImageData []byte `json:"imageData" validate:"required"`
	Width     int    `json:"width" validate:"gte=0,lte=16384"`
	Height    int    `json:"height" validate:"gte=0,lte=16384"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

func (a ProcessFrameArgs) Image() pose.RawImage {
	return pose.RawImage{
		Data:   a.ImageData,
		Width:  a.Width,
		Height: a.Height,
	}
}

type acceptedResult struct {
	Accepted bool `json:"accepted"`
}

type errorEvent struct {
	Error *CallError `json:"error"`
}

var argValidator = newArgValidator()

// newArgValidator reports fields by their JSON names so messages match what
// the caller sent.
func newArgValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs unmarshals call arguments into v. Missing arguments decode as
// an empty object.
func decodeArgs(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}

	if err := argValidator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, describeArgError(fe))
		}
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func describeArgError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}
