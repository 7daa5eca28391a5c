// Package respond builds the JSON envelope bodies dispatch handlers
// return. The handler contract is (body string, status int), so each
// helper produces both at once:
//
//	func list(path, method, body string) (string, int) {
//		return respond.OK(users)
//	}
//
// Every body is an envelope of {status, message, data, errors}, which
// keeps success and failure shapes uniform across modules.
package respond

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func render(status int, body envelope) (string, int) {
	data, err := json.Marshal(body)
	if err != nil {
		// A value that cannot be marshaled is a programming error; degrade
		// to a bare envelope rather than panic out of the handler.
		return `{"status":500,"message":"Internal server error"}`, http.StatusInternalServerError
	}
	return string(data), status
}

// OK returns a 200 envelope with data.
func OK(data interface{}) (string, int) {
	return render(http.StatusOK, envelope{Status: http.StatusOK, Data: data})
}

// Created returns a 201 envelope with data.
func Created(data interface{}) (string, int) {
	return render(http.StatusCreated, envelope{Status: http.StatusCreated, Data: data})
}

// Error returns an envelope carrying an error message.
func Error(status int, message string) (string, int) {
	return render(status, envelope{Status: status, Message: message})
}

// BadRequest returns a 400 envelope.
func BadRequest(message string) (string, int) {
	return Error(http.StatusBadRequest, message)
}

// NotFound returns a 404 envelope.
func NotFound(message string) (string, int) {
	if message == "" {
		message = "Not found"
	}
	return Error(http.StatusNotFound, message)
}

// Unauthorized returns a 401 envelope.
func Unauthorized() (string, int) {
	return Error(http.StatusUnauthorized, "Unauthorized")
}

// ValidationError returns a 422 envelope with a field-level error map.
func ValidationError(errs map[string]string) (string, int) {
	return render(http.StatusUnprocessableEntity, envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}
