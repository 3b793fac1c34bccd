package middleware

import (
	"strings"

	"docsum/app/state"

	"github.com/gofiber/fiber/v2"
)

// InitialSync calls start on the first request under prefix while the initial
// sync has not begun. start must return quickly; the sync itself runs elsewhere.
func InitialSync(prefix string, st *state.State, start func()) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), prefix) && st.Phase() == state.SyncNotStarted {
			start()
		}
		return c.Next()
	}
}
