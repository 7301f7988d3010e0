package model

// ControlInput is the normalized control state for one tick,
// independent of keyboard, pointer or touch origin.
type ControlInput struct {
	Forward   bool `json:"forward"`
	Brake     bool `json:"brake"`
	TurnLeft  bool `json:"turnLeft"`
	TurnRight bool `json:"turnRight"`
	Boost     bool `json:"boost"`
}
