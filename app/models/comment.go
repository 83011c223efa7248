package models

import "strings"

// Validate trims the comment text and checks it is present.
func (c *NewComment) Validate() error {
	c.Text = strings.TrimSpace(c.Text)
	return validate.Struct(c)
}

// Validate trims the credentials' email and checks both fields.
func (c *Credentials) Validate() error {
	c.Email = strings.TrimSpace(c.Email)
	return validate.Struct(c)
}

// Validate trims the registration's username and email and checks every field.
func (r *Registration) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	return validate.Struct(r)
}
