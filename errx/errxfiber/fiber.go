// Package errxfiber renders errx errors as JSON fiber responses.
//
//	app := fiber.New(fiber.Config{
//		ErrorHandler: errxfiber.FiberErrorHandler(),
//	})
//
// A handler returning projectx.ErrProjectionMismatch answers 409 with
//
//	{"error": {"code": "PROJECTX_PROJECTION_MISMATCH", "type": "CONFLICT", "message": "...", "details": {...}}}
package errxfiber

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/logx"
)

// ErrxToFiber converts e to a plain fiber error
func ErrxToFiber(e *errx.Error) error {
	status := e.HTTPStatus
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	return fiber.NewError(status, e.Message)
}

// FiberErrorHandler formats errors returned by handlers
func FiberErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var xerr *errx.Error
		if errors.As(err, &xerr) {
			body := fiber.Map{
				"code":    xerr.Code,
				"type":    xerr.Type,
				"message": xerr.Message,
			}
			if len(xerr.Details) > 0 {
				body["details"] = xerr.Details
			}
			if xerr.Cause != nil {
				body["cause"] = xerr.Cause.Error()
			}

			status := xerr.HTTPStatus
			if status == 0 {
				status = fiber.StatusInternalServerError
			}
			logx.Warn("%s %s: %v", c.Method(), c.Path(), err)

			return c.Status(status).JSON(fiber.Map{"error": body})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "FIBER_ERROR",
					"type":    errx.TypeInternal,
					"message": fiberErr.Message,
				},
			})
		}

		logx.Error("%s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"type":    errx.TypeInternal,
				"message": err.Error(),
			},
		})
	}
}
