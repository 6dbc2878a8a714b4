package session

import "errors"

// ErrInvalidAction is returned by Step for an action id outside 0–4.
// Out-of-range actions are a contract violation and are never clamped.
var ErrInvalidAction = errors.New("session: invalid action")
