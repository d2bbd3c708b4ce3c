// Package prefs holds user preferences: the window close action and the
// small JSON files they are persisted in.
package prefs

import "sync"

// Close actions understood by the window shell.
const (
	ActionHide     = "hide"
	ActionExit     = "exit"
	ActionAsk      = "ask"
	ActionMinimize = "minimize"
)

// DefaultCloseAction is the close action before the user picks one.
const DefaultCloseAction = ActionAsk

// ValidCloseAction reports whether action may be stored as the close action.
func ValidCloseAction(action string) bool {
	switch action {
	case ActionHide, ActionExit, ActionAsk:
		return true
	}
	return false
}

// CloseAction is the user's choice of what closing the main window does.
// It is safe for concurrent use.
type CloseAction struct {
	mu     sync.Mutex
	action string
}

// NewCloseAction returns a CloseAction holding initial, or the default when
// initial is not a valid action.
func NewCloseAction(initial string) *CloseAction {
	if !ValidCloseAction(initial) {
		initial = DefaultCloseAction
	}
	return &CloseAction{action: initial}
}

// Get returns the current action.
func (c *CloseAction) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.action
}

// Set stores action if it is valid and returns the effective value. Invalid
// values leave the previous action in place.
func (c *CloseAction) Set(action string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ValidCloseAction(action) {
		c.action = action
	}
	return c.action
}
