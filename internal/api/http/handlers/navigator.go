package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// CurrentViewHeader carries the view the browser was showing when it made the call.
const CurrentViewHeader = "X-Current-View"

// requestNavigator records the redirect a component asks for so the handler
// can turn it into a response.
type requestNavigator struct {
	current string
	target  string
}

func newRequestNavigator(c *fiber.Ctx) *requestNavigator {
	current := c.Get(CurrentViewHeader)
	if current == "" {
		current = c.BaseURL() + c.Path()
	}
	return &requestNavigator{current: current}
}

func (n *requestNavigator) CurrentView() string {
	return n.current
}

func (n *requestNavigator) Redirect(target string) {
	n.target = target
}

// respond redirects browsers and answers API clients with JSON.
func (n *requestNavigator) respond(c *fiber.Ctx, payload fiber.Map) error {
	if n.target == "" {
		return c.JSON(fiber.Map{"data": payload})
	}
	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMETextHTML {
		return c.Redirect(n.target, fiber.StatusSeeOther)
	}
	payload["redirect"] = n.target
	return c.JSON(fiber.Map{"data": payload})
}
