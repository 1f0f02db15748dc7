package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/services"
)

type loginRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	Password string `json:"password" binding:"required,max=255"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *handlerImpl) HandleLogin(c *gin.Context) {
	var req loginRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind login request")
		abortBinding(c, err)
		return
	}

	result, err := h.auth.Login(c, services.LoginParams{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		// The same body for an unknown username and a wrong password,
		// so the endpoint cannot be used to enumerate accounts.
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.Warn().
				Str("username", req.Username).
				Msg("login rejected")
			abort(c, newUnauthorizedError(services.ErrInvalidCredentials.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Msg("failed to login")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: result.Token})
}
