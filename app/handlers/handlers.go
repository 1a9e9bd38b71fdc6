// Package handlers contains the HTTP request handlers for the API server
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	businessflow "github.com/orbitcrm/outreach-engine/business_flow"
)

const requestTimeout = 10 * time.Second

// APIResponse is the uniform response envelope
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

func ok(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(APIResponse{Success: true, Data: data})
}

// fail maps business errors to HTTP responses. Unknown errors surface as 500
// with a generic message; details stay in the server log.
func fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal error"
	code := ""

	switch {
	case businessflow.IsCampaignNotFound(err) || errors.Is(err, businessflow.ErrRecipientNotFound) || errors.Is(err, businessflow.ErrLinkNotFound):
		status, message = fiber.StatusNotFound, err.Error()
	case businessflow.IsCampaignAccessDenied(err):
		status, message = fiber.StatusForbidden, err.Error()
	case businessflow.IsInvalidTransition(err) || businessflow.IsCampaignNotEditable(err) ||
		errors.Is(err, businessflow.ErrCampaignNotDeletable):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, businessflow.ErrCampaignNameRequired) ||
		errors.Is(err, businessflow.ErrInvalidChannel) ||
		errors.Is(err, businessflow.ErrScheduleTimeNotPresent) ||
		businessflow.IsScheduleTimeNotFuture(err) ||
		businessflow.IsNoRecipients(err) ||
		businessflow.IsUnsupportedTargetingType(err):
		status, message = fiber.StatusUnprocessableEntity, err.Error()
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code = be.Code
		if status == fiber.StatusInternalServerError && be.Code == "VALIDATION_FAILED" {
			status, message = fiber.StatusBadRequest, be.Message
		}
	}

	return c.Status(status).JSON(APIResponse{Success: false, Message: message, Code: code})
}

// requestContext detaches the handler from the connection lifetime so slow
// clients cannot cancel repository work mid-write
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
