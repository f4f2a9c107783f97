package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// StatusError describes a non-2xx response from an upstream API.
type StatusError struct {
	Service string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s returned %d (%s): %s", e.Service, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.Status, msg)
}

// upstreamError understands the common error body shapes: our own envelope
// ({"error":{"code","message"}}), Mercado Pago's ({"message","error","cause"})
// and Google's ({"error","error_description"}).
type upstreamError struct {
	Message          string          `json:"message"`
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Cause            []struct {
		Code        any    `json:"code"`
		Description string `json:"description"`
	} `json:"cause"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns a *StatusError.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	se := &StatusError{Service: service, Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return se
	}

	var ue upstreamError
	if json.Unmarshal(body, &ue) != nil {
		se.Message = strings.TrimSpace(string(body))
		return se
	}

	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	var code string
	switch {
	case json.Unmarshal(ue.Error, &envelope) == nil && envelope.Code != "":
		se.Code, se.Message = envelope.Code, envelope.Message
		return se
	case json.Unmarshal(ue.Error, &code) == nil:
		se.Code = code
	}

	se.Message = ue.Message
	if se.Message == "" {
		se.Message = ue.ErrorDescription
	}
	if len(ue.Cause) > 0 && ue.Cause[0].Description != "" {
		se.Message = strings.TrimSpace(se.Message + " (" + ue.Cause[0].Description + ")")
	}
	return se
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
