package handlers

import (
	"errors"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/gofiber/fiber/v2"
	"github.com/leonovk/wg-rest-api/peermanager"
	"github.com/leonovk/wg-rest-api/pkg/types"
)

// writeError maps manager errors to HTTP statuses. Anything unknown is a 500
// and gets logged.
func writeError(c *fiber.Ctx, log logr.Logger, err error) error {
	var verr *peermanager.ValidationError
	switch {
	case errors.Is(err, peermanager.ErrConfigNotFound):
		return c.Status(http.StatusNotFound).JSON(types.ErrorResponse{Error: err.Error()})
	case errors.As(err, &verr),
		errors.Is(err, peermanager.ErrAddressAlreadyTaken),
		errors.Is(err, peermanager.ErrPublicKeyAlreadyTaken),
		errors.Is(err, peermanager.ErrConnectionLimitExceeded):
		return c.Status(http.StatusBadRequest).JSON(types.ErrorResponse{Error: err.Error()})
	}
	log.Error(err, "request failed", "method", c.Method(), "path", c.Path())
	return c.Status(http.StatusInternalServerError).JSON(types.ErrorResponse{Error: "internal server error"})
}
