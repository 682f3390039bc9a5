package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/smart-support/internal/api/dto"
	"github.com/spec-kit/smart-support/internal/classify"
	"github.com/spec-kit/smart-support/internal/suggest"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

// SuggestionsHandler exposes the knowledge-base lookup.
type SuggestionsHandler struct {
	index      *suggest.Index
	classifier classify.Classifier
}

// NewSuggestionsHandler constructs handler.
func NewSuggestionsHandler(index *suggest.Index, classifier classify.Classifier) *SuggestionsHandler {
	return &SuggestionsHandler{index: index, classifier: classifier}
}

// Lookup handles GET /suggestions?q=. The query is classified and
// matched against the knowledge base without creating a ticket.
func (h *SuggestionsHandler) Lookup(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return apperrors.NewValidationError("query parameter q is required", nil)
	}

	category, err := h.classifier.Classify(c.UserContext(), query)
	if err != nil {
		return err
	}

	entry, ok := h.index.Nearest(query)
	resp := dto.SuggestionResponse{Matched: ok, Category: string(category)}
	if ok {
		resp.Problem = entry.Problem
		resp.Suggestion = entry.Suggestion
	}
	return c.JSON(fiber.Map{"data": resp})
}
