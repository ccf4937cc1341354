package models

// Court is a playable court in the club. Number drives deterministic
// allocation order (lowest first).
type Court struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
	Active bool   `json:"active"`
}
