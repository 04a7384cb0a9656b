package pose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Delegate string

const (
	DelegateCPU Delegate = "CPU"
	DelegateGPU Delegate = "GPU"
)

type Mode string

const (
	ModeSingleShot Mode = "SINGLE_SHOT"
	ModeLiveStream Mode = "LIVE_STREAM"
)

const (
	DefaultModelPath              = "pose_landmarker_heavy.task"
	DefaultMaxPoses               = 1
	DefaultMinDetectionConfidence = 0.75
	DefaultMinPresenceConfidence  = 0.75
	DefaultMinTrackingConfidence  = 0.70
)

type SessionConfig struct {
	ModelPath              string   `json:"model_path" validate:"required"`
	Delegate               Delegate `json:"delegate" validate:"oneof=CPU GPU"`
	MaxPoses               int      `json:"max_poses" validate:"gte=1"`
	MinDetectionConfidence float64  `json:"min_detection_confidence" validate:"gte=0,lte=1"`
	MinPresenceConfidence  float64  `json:"min_presence_confidence" validate:"gte=0,lte=1"`
	MinTrackingConfidence  float64  `json:"min_tracking_confidence" validate:"gte=0,lte=1"`
	Mode                   Mode     `json:"mode" validate:"oneof=SINGLE_SHOT LIVE_STREAM"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ModelPath:              DefaultModelPath,
		Delegate:               DelegateCPU,
		MaxPoses:               DefaultMaxPoses,
		MinDetectionConfidence: DefaultMinDetectionConfidence,
		MinPresenceConfidence:  DefaultMinPresenceConfidence,
		MinTrackingConfidence:  DefaultMinTrackingConfidence,
		Mode:                   ModeSingleShot,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every failing field at once, wrapped as an InvalidConfig
// InitError.
func (c SessionConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewInitError(ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeFieldError(fe))
	}
	return NewInitError(ErrInvalidConfig, errors.New(strings.Join(problems, "; ")))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", fe.Field(), fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
