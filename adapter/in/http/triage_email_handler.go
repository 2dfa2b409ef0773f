package http

import (
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/infra/middleware"
	"triage_server/pkg/cache"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const statsCacheTTL = 5 * time.Minute

// EmailHandler serves the stored insurance email records.
type EmailHandler struct {
	emails out.EmailRepository
	cache  *cache.RedisCache
}

// NewEmailHandler creates a new email handler. cache may be nil.
func NewEmailHandler(emails out.EmailRepository, cache *cache.RedisCache) *EmailHandler {
	return &EmailHandler{emails: emails, cache: cache}
}

// Register registers email routes.
func (h *EmailHandler) Register(router fiber.Router) {
	emails := router.Group("/emails")

	emails.Get("/", h.ListEmails)
	emails.Get("/stats", h.GetStats)
}

// ListEmails returns stored records for the caller, newest first.
//
// Query parameters:
//   - category: filter by verdict category
//   - insurance_only: keep only insurance-positive records
//   - include_spam: include records flagged as spam
//   - limit, offset: pagination
func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	filter := &out.EmailListFilter{
		InsuranceOnly: c.QueryBool("insurance_only", false),
		IncludeSpam:   c.QueryBool("include_spam", false),
		Limit:         c.QueryInt("limit", 50),
		Offset:        c.QueryInt("offset", 0),
	}
	if category := c.Query("category"); category != "" {
		cat := domain.EmailCategory(category)
		filter.Category = &cat
	}

	records, err := h.emails.List(c.Context(), userID.String(), filter)
	if err != nil {
		return err
	}
	total, err := h.emails.Count(c.Context(), userID.String(), filter)
	if err != nil {
		return err
	}

	return response.OKWithMeta(c, records, &response.Meta{
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: int64(filter.Offset+len(records)) < total,
	})
}

// GetStats returns per-category record counts for the caller. Counts are
// cached briefly since they only move during a sync.
func (h *EmailHandler) GetStats(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	key := statsCacheKey(userID.String())
	if h.cache != nil {
		var cached map[domain.EmailCategory]int64
		if hit, err := h.cache.GetJSON(c.Context(), key, &cached); err == nil && hit {
			return response.OK(c, cached)
		}
	}

	counts, err := h.emails.CountByCategory(c.Context(), userID.String())
	if err != nil {
		return err
	}

	if h.cache != nil {
		_ = h.cache.SetJSON(c.Context(), key, counts, statsCacheTTL)
	}

	return response.OK(c, counts)
}

func statsCacheKey(userID string) string {
	return fmt.Sprintf("emails:stats:%s", userID)
}
