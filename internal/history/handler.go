package history

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/auth"
	"github.com/congo-pay/ledgerd/internal/httpx"
)

// Handler exposes the caller's history.
type Handler struct {
	store Store
}

// NewHandler builds a history HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// List serves GET /history?cursor=&limit=&order=oldest|newest for the caller.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, ok := auth.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	q, err := parseQuery(c)
	if err != nil {
		return err
	}
	page, err := h.store.List(c.UserContext(), caller.UserID, q)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, fiber.Map{
		"history":     page.Entries,
		"next_cursor": page.NextCursor,
	})
}

func parseQuery(c *fiber.Ctx) (Query, error) {
	var q Query
	details := map[string]string{}

	if raw := c.Query("cursor"); raw != "" {
		cursor, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			details["cursor"] = "must be a non-negative integer"
		}
		q.Cursor = cursor
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			details["limit"] = "must be between 1 and " + strconv.Itoa(MaxLimit)
		}
		q.Limit = limit
	}
	order, err := ParseOrder(c.Query("order"))
	if err != nil {
		details["order"] = "must be one of: oldest, newest"
	}
	q.Order = order

	if len(details) > 0 {
		return Query{}, &httpx.InvalidRequest{Details: details}
	}
	return q, nil
}
