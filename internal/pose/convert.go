package pose

import "fmt"

// ToFrame converts detector output into the frame handed to the host.
//
// Poses that report a score below cfg.MinPresenceConfidence are dropped, and
// of the rest only the first is surfaced even when cfg.MaxPoses > 1. Each
// point takes x and y from the 2D set and z from the world set at the same
// index.
func ToFrame(raw *RawResult, timestampMs int64, cfg SessionConfig) (LandmarkFrame, error) {
	frame := LandmarkFrame{
		Landmarks:   []LandmarkPoint{},
		TimestampMs: timestampMs,
	}

	p := firstPose(raw, cfg.MinPresenceConfidence)
	if p == nil {
		return frame, nil
	}

	if len(p.Landmarks) != len(p.WorldLandmarks) {
		return frame, fmt.Errorf("%w: %d image landmarks, %d world landmarks",
			ErrLandmarkMismatch, len(p.Landmarks), len(p.WorldLandmarks))
	}

	frame.Landmarks = make([]LandmarkPoint, len(p.Landmarks))
	for i, lm := range p.Landmarks {
		point := LandmarkPoint{
			X: lm.X,
			Y: lm.Y,
			Z: p.WorldLandmarks[i].Z,
		}
		if lm.Visibility != nil {
			point.Visibility = *lm.Visibility
		}
		frame.Landmarks[i] = point
	}

	return frame, nil
}

func firstPose(raw *RawResult, minScore float64) *RawPose {
	if raw == nil {
		return nil
	}
	for i := range raw.Poses {
		p := &raw.Poses[i]
		if p.Score != nil && *p.Score < minScore {
			continue
		}
		return p
	}
	return nil
}
