package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/orbitcrm/outreach-engine/app/dto"
	"github.com/orbitcrm/outreach-engine/app/middleware"
	businessflow "github.com/orbitcrm/outreach-engine/business_flow"
	"github.com/orbitcrm/outreach-engine/models"
)

// CampaignHandlerInterface defines the contract for campaign lifecycle endpoints
type CampaignHandlerInterface interface {
	Create(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Schedule(c fiber.Ctx) error
	Start(c fiber.Ctx) error
	Pause(c fiber.Ctx) error
	Resume(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	AddRecipient(c fiber.Ctx) error
	RemoveRecipient(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
}

// CampaignHandler handles campaign lifecycle requests
type CampaignHandler struct {
	flow businessflow.CampaignFlow
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(flow businessflow.CampaignFlow) CampaignHandlerInterface {
	return &CampaignHandler{flow: flow}
}

// Create creates a draft campaign
func (h *CampaignHandler) Create(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(APIResponse{Success: false, Message: "invalid request body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.CreateCampaign(ctx, &req, middleware.TenantID(c), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, resp)
}

// Get returns one campaign
func (h *CampaignHandler) Get(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.GetCampaign(ctx, c.Params("uuid"), middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

// List returns the tenant's campaigns, newest first
func (h *CampaignHandler) List(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var status *models.CampaignStatus
	if s := c.Query("status"); s != "" {
		cs := models.CampaignStatus(s)
		if !cs.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(APIResponse{Success: false, Message: "invalid status filter"})
		}
		status = &cs
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.ListCampaigns(ctx, middleware.TenantID(c), status, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

// Update edits a draft campaign
func (h *CampaignHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateCampaignRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(APIResponse{Success: false, Message: "invalid request body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.UpdateCampaign(ctx, c.Params("uuid"), &req, middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

// Schedule moves a draft to scheduled
func (h *CampaignHandler) Schedule(c fiber.Ctx) error {
	var req dto.ScheduleCampaignRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(APIResponse{Success: false, Message: "invalid request body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.ScheduleCampaign(ctx, c.Params("uuid"), &req, middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

// Start begins delivery immediately
func (h *CampaignHandler) Start(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.StartCampaign(ctx, c.Params("uuid"), middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusAccepted, resp)
}

// Pause stops an in-flight delivery
func (h *CampaignHandler) Pause(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.PauseCampaign(ctx, c.Params("uuid"), middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

// Resume restarts a paused delivery
func (h *CampaignHandler) Resume(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.ResumeCampaign(ctx, c.Params("uuid"), middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusAccepted, resp)
}

// Delete removes a draft campaign
func (h *CampaignHandler) Delete(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	if err := h.flow.DeleteCampaign(ctx, c.Params("uuid"), middleware.TenantID(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, nil)
}

// AddRecipient appends a literal entry to a draft with custom targeting
func (h *CampaignHandler) AddRecipient(c fiber.Ctx) error {
	var req dto.AddRecipientRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(APIResponse{Success: false, Message: "invalid request body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.AddRecipient(ctx, c.Params("uuid"), &req, middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}

// RemoveRecipient deletes a pending materialized recipient
func (h *CampaignHandler) RemoveRecipient(c fiber.Ctx) error {
	recipientID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || recipientID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(APIResponse{Success: false, Message: "invalid recipient id"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.flow.RemoveRecipient(ctx, c.Params("uuid"), uint(recipientID), middleware.TenantID(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, nil)
}

// Stats returns delivery counters and per-link click figures
func (h *CampaignHandler) Stats(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	resp, err := h.flow.CampaignStats(ctx, c.Params("uuid"), middleware.TenantID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, resp)
}
