package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/orbitcrm/outreach-engine/app/metrics"
	businessflow "github.com/orbitcrm/outreach-engine/business_flow"
)

// RedirectHandlerInterface defines the contract for the public short link redirect
type RedirectHandlerInterface interface {
	Visit(c fiber.Ctx) error
}

// RedirectHandler serves short link redirects and records click attribution
type RedirectHandler struct {
	flow   businessflow.ClickAttributor
	logger *log.Logger
}

// NewRedirectHandler creates a new redirect handler
func NewRedirectHandler(flow businessflow.ClickAttributor, logger *log.Logger) RedirectHandlerInterface {
	return &RedirectHandler{flow: flow, logger: logger}
}

// Visit resolves the short code and redirects the visitor to the tagged
// destination. Attribution failures are logged and never block the redirect.
func (h *RedirectHandler) Visit(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		metrics.RedirectsServed.WithLabelValues("bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).SendString("invalid link")
	}

	ctx, cancel := requestContext()
	defer cancel()

	link, err := h.flow.ResolveLink(ctx, code)
	if err != nil {
		if businessflow.IsLinkNotFound(err) {
			metrics.RedirectsServed.WithLabelValues("not_found").Inc()
			return c.Status(fiber.StatusNotFound).SendString("not found")
		}
		h.logger.Printf("short link %s resolution failed: %v", code, err)
		metrics.RedirectsServed.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}

	input := businessflow.ClickInput{
		ShortCode:    code,
		RecipientRef: c.Query("r"),
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
		Referrer:     c.Get("Referer"),
	}
	if _, err := h.flow.RecordClick(ctx, link, input); err != nil {
		h.logger.Printf("short link %s click recording failed: %v", code, err)
	}

	metrics.RedirectsServed.WithLabelValues("found").Inc()
	c.Redirect().Status(fiber.StatusFound).To(link.TaggedURL)
	return nil
}
