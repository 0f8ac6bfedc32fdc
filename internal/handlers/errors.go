package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/storage"
)

func internalError(c *fiber.Ctx, code string, err error) error {
	logger.Error("Request failed", "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

// daoError maps data access and storage errors onto HTTP responses.
func daoError(c *fiber.Ctx, err error) error {
	var invalid *storage.InvalidFormatError
	switch {
	case errors.Is(err, dao.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_NOT_FOUND",
		})
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_FORMAT",
		})
	default:
		return internalError(c, "ERR_INTERNAL", err)
	}
}
