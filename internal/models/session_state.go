package models

import "time"

// SessionState is the authentication snapshot of a logged-in browser context.
type SessionState struct {
	Cookies []Cookie        `json:"cookies"`
	Origins []OriginStorage `json:"origins"`
	SavedAt time.Time       `json:"saved_at"`
}

// Cookie mirrors the subset of a CDP cookie needed to restore it.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// OriginStorage holds web storage captured for one origin.
type OriginStorage struct {
	Origin         string            `json:"origin"`
	LocalStorage   map[string]string `json:"localStorage,omitempty"`
	SessionStorage map[string]string `json:"sessionStorage,omitempty"`
}

// Empty reports whether the snapshot carries no authentication material.
func (s SessionState) Empty() bool {
	return len(s.Cookies) == 0 && len(s.Origins) == 0
}
