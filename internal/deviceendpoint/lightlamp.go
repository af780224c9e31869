package deviceendpoint

import (
	"strconv"

	"iotfabric/internal/model"
)

// LightLampState is the abstract actuator state machine for a light
// lamp: on/off, brightness (0-100), and an arbitrary color label. The
// concrete meaning of these fields is out of scope (SPEC §1); only the
// state transitions matter here.
type LightLampState struct {
	IsOn       bool
	Brightness int
	Color      string
}

// NewLightLampState returns the default off, dim, white lamp.
func NewLightLampState() *LightLampState {
	return &LightLampState{IsOn: false, Brightness: 0, Color: "white"}
}

func (s *LightLampState) properties() map[string]string {
	return map[string]string{
		"is_on":      strconv.FormatBool(s.IsOn),
		"brightness": strconv.Itoa(s.Brightness),
		"color":      s.Color,
	}
}

func (s *LightLampState) apply(action *model.ActuatorAction) (string, *model.Error) {
	if action.Category != model.CategoryLightLamp || action.LightLamp == nil {
		return "", model.NewError(model.ErrInvalidCommand, "expected a light lamp action")
	}
	a := action.LightLamp

	if a.HasBrightness && (a.Brightness < 0 || a.Brightness > 100) {
		return "", model.NewError(model.ErrValidation, "brightness must be between 0 and 100", "brightness", strconv.Itoa(a.Brightness))
	}

	if a.HasTurnOn {
		s.IsOn = a.TurnOn
	}
	if a.HasBrightness {
		s.Brightness = a.Brightness
	}
	if a.HasColor && a.Color != "" {
		s.Color = a.Color
	}

	return "light lamp state updated", nil
}
