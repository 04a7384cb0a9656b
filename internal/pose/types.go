package pose

type LandmarkPoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// LandmarkFrame is one detection result. Landmarks is empty, never nil, when
// no pose was detected.
type LandmarkFrame struct {
	Landmarks   []LandmarkPoint `json:"landmarks"`
	TimestampMs int64           `json:"timestamp"`
}

type NormalizedLandmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
	Presence   *float64 `json:"presence,omitempty"`
}

type WorldLandmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type RawPose struct {
	Landmarks      []NormalizedLandmark `json:"landmarks"`
	WorldLandmarks []WorldLandmark      `json:"world_landmarks"`
	Score          *float64             `json:"score,omitempty"`
}

// RawResult is what a detector reports for a single image, before any
// filtering or pairing.
type RawResult struct {
	Poses []RawPose `json:"poses"`
}

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}
