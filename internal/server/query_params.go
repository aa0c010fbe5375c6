package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	fridgedomain "github.com/smallbiznis/dormitory/internal/fridge/domain"
)

func parseFloor(c *gin.Context) (int, error) {
	floor, err := strconv.Atoi(strings.TrimSpace(c.Param("floor")))
	if err != nil || floor < 1 {
		return 0, fridgedomain.ErrInvalidFloor
	}
	return floor, nil
}

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
