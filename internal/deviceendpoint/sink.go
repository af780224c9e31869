package deviceendpoint

import (
	"strconv"

	"iotfabric/internal/model"
)

// SinkState is the abstract actuator state machine for a sink valve:
// on/off only.
type SinkState struct {
	IsOn bool
}

// NewSinkState returns the default closed sink.
func NewSinkState() *SinkState {
	return &SinkState{IsOn: false}
}

func (s *SinkState) properties() map[string]string {
	return map[string]string{"is_on": strconv.FormatBool(s.IsOn)}
}

func (s *SinkState) apply(action *model.ActuatorAction) (string, *model.Error) {
	if action.Category != model.CategorySink || action.Sink == nil {
		return "", model.NewError(model.ErrInvalidCommand, "expected a sink action")
	}
	a := action.Sink

	if a.HasTurnOn {
		s.IsOn = a.TurnOn
	}

	return "sink state updated", nil
}
