package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bnema/rulekit/internal/categories"
	"github.com/bnema/rulekit/internal/compiler"
	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/registry"
)

// Utils

func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, registry.ErrBuiltIn):
		code = http.StatusForbidden
	case errors.Is(err, registry.ErrDuplicateURL), errors.Is(err, registry.ErrUpdateInProgress):
		code = http.StatusConflict
	case errors.Is(err, registry.ErrInvalidURL), errors.Is(err, categories.ErrUnknownCategory):
		code = http.StatusBadRequest
	}
	return echo.NewHTTPError(code, err.Error())
}

func forceParam(c echo.Context) bool {
	force, _ := strconv.ParseBool(c.QueryParam("force"))
	return force
}

// Subscriptions

type addSubscriptionRequest struct {
	Name string `json:"name"`
	URL  string `json:"url" validate:"required,url"`
}

func (s *Server) listSubscriptions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Subscriptions())
}

func (s *Server) addSubscription(c echo.Context) error {
	req := new(addSubscriptionRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(*req); err != nil {
		return err
	}

	sub, err := s.registry.Add(c.Request().Context(), req.Name, req.URL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (s *Server) removeSubscription(c echo.Context) error {
	if err := s.registry.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) enableSubscription(c echo.Context) error {
	return s.setEnabled(c, true)
}

func (s *Server) disableSubscription(c echo.Context) error {
	return s.setEnabled(c, false)
}

func (s *Server) setEnabled(c echo.Context, enabled bool) error {
	id := c.Param("id")
	if err := s.registry.SetEnabled(c.Request().Context(), id, enabled); err != nil {
		return httpError(err)
	}
	sub, err := s.registry.Get(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

// Updates

func (s *Server) updateSubscription(c echo.Context) error {
	id := c.Param("id")
	changed, err := s.registry.Update(c.Request().Context(), id, forceParam(c))
	if err != nil {
		// a failed fetch is recorded on the subscription and reported below;
		// a failed save after compiling is not
		if changed || errors.Is(err, registry.ErrNotFound) || errors.Is(err, registry.ErrUpdateInProgress) {
			return httpError(err)
		}
		logging.FromContext(c.Request().Context()).Debug().Err(err).Str("subscription", id).Msg("update failed")
	}

	sub, getErr := s.registry.Get(id)
	if getErr != nil {
		return httpError(getErr)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"changed":      changed,
		"subscription": sub,
	})
}

func (s *Server) updateAll(c echo.Context) error {
	report, err := s.registry.UpdateAll(c.Request().Context(), forceParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// Categories

type categoriesRequest struct {
	Categories []string `json:"categories" validate:"dive,required"`
}

func (s *Server) getCategories(c echo.Context) error {
	enabled := s.registry.Categories()
	all := make([]map[string]any, 0, len(categories.All()))
	for _, cat := range categories.All() {
		all = append(all, map[string]any{
			"name":    cat,
			"rules":   categories.Count(cat),
			"enabled": slices.Contains(enabled, cat),
		})
	}
	return c.JSON(http.StatusOK, all)
}

func (s *Server) setCategories(c echo.Context) error {
	req := new(categoriesRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(*req); err != nil {
		return err
	}

	cats, err := categories.ParseAll(req.Categories)
	if err != nil {
		return httpError(err)
	}
	if err := s.registry.SetCategories(c.Request().Context(), cats); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s.registry.Categories())
}

func (s *Server) resetCategories(c echo.Context) error {
	if err := s.registry.ResetCategories(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s.registry.Categories())
}

// Rules and status

func (s *Server) getRules(c echo.Context) error {
	rules, truncated, err := s.registry.Compose(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("X-Rules-Truncated", strconv.FormatBool(truncated))
	c.Response().Header().Set("X-Rules-Fingerprint", s.registry.Fingerprint())
	return c.JSON(http.StatusOK, rules)
}

type statusResponse struct {
	Registry    registry.State  `json:"registry"`
	Publisher   compiler.Status `json:"publisher"`
	Fingerprint string          `json:"fingerprint"`
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Registry:    s.registry.State(),
		Publisher:   s.publisher.Status(),
		Fingerprint: s.registry.Fingerprint(),
	})
}
