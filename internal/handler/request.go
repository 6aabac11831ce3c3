package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

var requestValidator = validator.New()

// bindJSON decodes and validates a request body. Optional bodies may be empty.
func bindJSON(c *gin.Context, dest interface{}, optional bool, label string) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+label+" payload")
		}
	}
	if err := requestValidator.Struct(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+label+" payload")
	}
	return nil
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a positive integer")
	}
	return value, nil
}

func pathID(c *gin.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "id is required")
	}
	return id, nil
}
