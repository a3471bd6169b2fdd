// Package smdnanov1 defines the smdnano.v1.Broker gRPC service: message
// types, the service descriptor, and a client stub. Messages travel as JSON
// through a registered codec.
package smdnanov1

import (
	"time"

	"github.com/ppiankov/smdnano/internal/model"
)

// Status carries the outcome of a call. Domain failures are reported here
// rather than as transport errors.
type Status struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type PolicyRequest struct {
	URL string `json:"url"`
}

type PolicyResponse struct {
	Status
	Decision *model.PolicyDecision `json:"decision,omitempty"`
}

type GenerateRequest struct {
	Master      string `json:"master"`
	TabID       int    `json:"tabId"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	User        string `json:"user,omitempty"`
	Counter     int    `json:"counter,omitempty"`
	Length      int    `json:"length,omitempty"`
	Mode        string `json:"mode,omitempty"`
	NewPassword bool   `json:"newPassword,omitempty"`
}

type GenerateContext struct {
	TabID     int       `json:"tabId"`
	Domain    string    `json:"domain"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Trust     string    `json:"trust"`
	Counter   int       `json:"counter"`
	Length    int       `json:"length"`
	Mode      string    `json:"mode"`
}

type GenerateResponse struct {
	Status
	Password    string           `json:"password,omitempty"`
	Ctx         *GenerateContext `json:"ctx,omitempty"`
	Fingerprint string           `json:"fingerprint,omitempty"`
}

type FillRequest struct {
	TabID int `json:"tabId"`
}

type FillResponse struct {
	Status
	Remaining int    `json:"remaining"`
	NextHint  string `json:"nextHint,omitempty"`
}

type InvalidateRequest struct {
	TabID  int    `json:"tabId"`
	Reason string `json:"reason,omitempty"`
}

type InvalidateResponse struct {
	Status
	Removed bool `json:"removed"`
}

// Field is an input element on a page in the browser model.
type Field struct {
	Name         string `json:"name,omitempty"`
	ID           string `json:"id,omitempty"`
	Type         string `json:"type"`
	Autocomplete string `json:"autocomplete,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	Value        string `json:"value,omitempty"`
}

// OpenTabRequest opens a page. Zero TabID lets the browser assign one.
type OpenTabRequest struct {
	TabID    int     `json:"tabId,omitempty"`
	URL      string  `json:"url"`
	Embedded bool    `json:"embedded,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

type OpenTabResponse struct {
	Status
	TabID int `json:"tabId"`
}

type NavigateRequest struct {
	TabID    int     `json:"tabId"`
	URL      string  `json:"url"`
	Embedded bool    `json:"embedded,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

type NavigateResponse struct {
	Status
}

type CloseTabRequest struct {
	TabID int `json:"tabId"`
}

type CloseTabResponse struct {
	Status
}

type QueryContextRequest struct {
	TabID int `json:"tabId"`
}

type QueryContextResponse struct {
	Status
	URL            string   `json:"url,omitempty"`
	Username       string   `json:"username,omitempty"`
	PasswordFields []string `json:"pwFields,omitempty"`
}
