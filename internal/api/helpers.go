package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

func writeBadRequest(c *echo.Context, err error) error {
	var ire invalidRequestError
	param := ""
	if errors.As(err, &ire) {
		param = ire.param
	}
	return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), param, "")
}

func writeServerError(c *echo.Context, err error) error {
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// decodeJSON decodes one value from r, reading at most limit bytes.
func decodeJSON[T any](r io.Reader, limit int64) (T, error) {
	var out T
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return out, err
	}
	if int64(len(body)) > limit {
		return out, newInvalidRequest("body", fmt.Sprintf("request body exceeds %d bytes", limit))
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
