package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"meetspot-api/internal/config"
	"meetspot-api/internal/service"
)

const stateCookie = "oauth_state"

type OAuthHandler struct {
	cfg         *config.Config
	authService service.AuthService
}

func NewOAuthHandler(cfg *config.Config, authService service.AuthService) *OAuthHandler {
	return &OAuthHandler{cfg: cfg, authService: authService}
}

type providerConfig struct {
	oauth       *oauth2.Config
	userinfoURL string
}

func (h *OAuthHandler) provider(name string) (*providerConfig, error) {
	callback := fmt.Sprintf("%s/v1/auth/%s/callback", h.cfg.OAuthCallbackBase, name)

	switch name {
	case "google":
		return &providerConfig{
			oauth: &oauth2.Config{
				ClientID:     h.cfg.GoogleClientID,
				ClientSecret: h.cfg.GoogleClientSecret,
				RedirectURL:  callback,
				Scopes:       []string{"openid", "email"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
					TokenURL: "https://oauth2.googleapis.com/token",
				},
			},
			userinfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		}, nil
	case "linkedin":
		return &providerConfig{
			oauth: &oauth2.Config{
				ClientID:     h.cfg.LinkedInClientID,
				ClientSecret: h.cfg.LinkedInClientSecret,
				RedirectURL:  callback,
				Scopes:       []string{"openid", "email"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
					TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
				},
			},
			userinfoURL: "https://api.linkedin.com/v2/userinfo",
		}, nil
	}

	return nil, fmt.Errorf("unknown oauth provider %q", name)
}

func (h *OAuthHandler) Login(c *fiber.Ctx) error {
	prov, err := h.provider(c.Params("provider"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		HTTPOnly: true,
		MaxAge:   300,
	})

	return c.Redirect(prov.oauth.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	prov, err := h.provider(c.Params("provider"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	if c.Query("state") == "" || c.Query("state") != c.Cookies(stateCookie) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "State mismatch"})
	}

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Authorization code not provided"})
	}

	token, err := prov.oauth.Exchange(c.Context(), code)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "OAuth code exchange failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to obtain access token"})
	}

	subject, email, err := fetchIdentity(c, prov, token)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "OAuth userinfo fetch failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to get user profile"})
	}

	accessToken, err := h.authService.OAuthLogin(c.Context(), email, subject)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not log in"})
	}

	redirect := fmt.Sprintf("%s?token=%s", h.cfg.FrontendURL, url.QueryEscape(accessToken))
	return c.Redirect(redirect, fiber.StatusTemporaryRedirect)
}

func fetchIdentity(c *fiber.Ctx, prov *providerConfig, token *oauth2.Token) (subject, email string, err error) {
	client := prov.oauth.Client(c.Context(), token)

	resp, err := client.Get(prov.userinfoURL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		return "", "", fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", "", err
	}

	if info.Sub == "" || info.Email == "" {
		return "", "", fmt.Errorf("userinfo response missing subject or email")
	}

	return info.Sub, info.Email, nil
}
