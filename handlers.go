package magstand

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/api/feed", a.handleFeed)
	e.GET("/api/trending", a.handleTrending)
	e.GET("/api/saved", a.handleSaved)
	e.GET("/api/posts/:id", a.handlePost)
	e.GET("/api/posts/:id/access", a.handlePostAccess)
	e.PUT("/api/posts/:id/saved", a.handleSetSaved)
	e.POST("/api/sync", a.handleSync)

	e.GET("/api/settings", a.handleSettings)
	e.POST("/api/settings/sync", a.handleSettingsSync)

	e.GET("/api/notifications", a.handleNotifications)
	e.POST("/api/notifications", a.handleAddNotification)
	e.PUT("/api/notifications/:id/read", a.handleMarkNotificationRead)
	e.GET("/api/notifications/unread", a.handleUnreadCount)

	e.GET("/api/session", a.handleGetSession)
	e.POST("/api/session", a.handleLogin)
	e.DELETE("/api/session", a.handleLogout)
}

// postView is the wire shape of a post. Gated posts go out with the content
// replaced by a plain-text teaser and the Teaser flag set.
type postView struct {
	Post
	Teaser bool `json:"teaser"`
}

func queryLimit(c echo.Context, fallback int) int {
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}
	return id, nil
}

// listJSON renders posts, degrading to an empty list on store errors: screens
// always get something renderable, never a sync or storage error.
func listJSON(c echo.Context, posts []Post, err error) error {
	if err != nil {
		c.Logger().Errorf("read posts: %v", err)
		posts = nil
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.RandomPage(queryLimit(c, 20))
	return listJSON(c, posts, err)
}

func (a *App) handleTrending(c echo.Context) error {
	posts, err := a.Store.Trending(queryLimit(c, 5))
	return listJSON(c, posts, err)
}

func (a *App) handleSaved(c echo.Context) error {
	posts, err := a.Store.Saved()
	return listJSON(c, posts, err)
}

func (a *App) handlePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	post, err := a.Store.ByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	allowed, err := a.Gate.canAccess(c.Request().Context(), post)
	if err != nil {
		// Resolver failure denies; the teaser path below still renders.
		c.Logger().Errorf("resolve entitlements: %v", err)
	}
	view := postView{Post: post}
	if !allowed {
		view.Content = post.Teaser(a.Config.TeaserLength)
		view.Teaser = true
	}
	return c.JSON(http.StatusOK, view)
}

func (a *App) handlePostAccess(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	allowed, err := a.Gate.CanAccessPost(c.Request().Context(), id)
	if err != nil {
		c.Logger().Errorf("resolve entitlements: %v", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"allowed": allowed})
}

func (a *App) handleSetSaved(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var body struct {
		Saved bool `json:"saved"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := a.Store.SetSaved(id, body.Saved); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": body.Saved})
}

// handleSync runs one sync cycle. With ?background=true it kicks the cycle
// off and returns immediately; the client re-reads the feed afterwards to
// pick up changes. Sync failures in either mode surface as zero-progress
// results, never as errors: refresh is best-effort.
func (a *App) handleSync(c echo.Context) error {
	limit := queryLimit(c, a.Config.SyncLimit)
	if c.QueryParam("background") == "true" {
		go a.Syncer.RefreshInBackground(context.Background(), limit)
		return c.JSON(http.StatusAccepted, map[string]string{"status": "refreshing"})
	}
	result, err := a.Syncer.Sync(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("sync: %v", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"fetched":  result.Fetched,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	})
}

func (a *App) handleSettings(c echo.Context) error {
	doc, err := a.Store.Settings()
	if err != nil {
		c.Logger().Errorf("read settings: %v", err)
		doc = SettingsDoc{Data: map[string]string{}}
	}
	return c.JSON(http.StatusOK, doc)
}

func (a *App) handleSettingsSync(c echo.Context) error {
	if a.settings == nil {
		doc, _ := a.Store.Settings()
		return c.JSON(http.StatusOK, doc)
	}
	doc, err := SyncSettings(c.Request().Context(), a.Store, a.settings)
	if err != nil {
		c.Logger().Errorf("sync settings: %v", err)
		doc = SettingsDoc{Data: map[string]string{}}
	}
	return c.JSON(http.StatusOK, doc)
}

func (a *App) handleNotifications(c echo.Context) error {
	list, err := a.Store.Notifications()
	if err != nil {
		c.Logger().Errorf("read notifications: %v", err)
	}
	if list == nil {
		list = []Notification{}
	}
	return c.JSON(http.StatusOK, list)
}

func (a *App) handleAddNotification(c echo.Context) error {
	var body struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	n, err := a.Store.AddNotification(body.Title, body.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (a *App) handleMarkNotificationRead(c echo.Context) error {
	if err := a.Store.MarkNotificationRead(c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "notification not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleUnreadCount(c echo.Context) error {
	n, err := a.Store.UnreadNotifications()
	if err != nil {
		c.Logger().Errorf("count unread: %v", err)
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

func (a *App) handleGetSession(c echo.Context) error {
	session, err := a.entitlements.Current(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("resolve session: %v", err)
		session = Session{}
	}
	return c.JSON(http.StatusOK, session)
}

func (a *App) handleLogin(c echo.Context) error {
	if a.Sessions == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "login is not configured")
	}
	if !a.loginLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
	}
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	session, err := a.Sessions.Login(c.Request().Context(), body.Username, body.Password)
	if err != nil {
		c.Logger().Errorf("login: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err := markLoggedIn(c, true); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (a *App) handleLogout(c echo.Context) error {
	if a.Sessions != nil {
		a.Sessions.Logout()
	}
	if err := markLoggedIn(c, false); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
