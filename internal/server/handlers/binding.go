package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// RegisterValidators adds the calendar_date tag to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DayLayout, fl.Field().String())
		return err == nil
	})
}

// dayOrNil parses an optional YYYY-MM-DD value.
func dayOrNil(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := models.ParseDay(value, loc)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func dateRange(start, end string, loc *time.Location) (models.DateRange, error) {
	from, err := dayOrNil(start, loc)
	if err != nil {
		return models.DateRange{}, err
	}
	to, err := dayOrNil(end, loc)
	if err != nil {
		return models.DateRange{}, err
	}
	return models.DateRange{Start: from, End: to}, nil
}

type rangeQuery struct {
	StartDate string `form:"startDate" binding:"omitempty,calendar_date"`
	EndDate   string `form:"endDate" binding:"omitempty,calendar_date"`
}

func (q rangeQuery) resolve(loc *time.Location) (models.DateRange, error) {
	return dateRange(q.StartDate, q.EndDate, loc)
}

// paidFilter reads ?paid=true|false; absent means both.
func paidFilter(c *gin.Context) (*bool, error) {
	raw := c.Query("paid")
	if raw == "" {
		return nil, nil
	}
	paid, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: paid must be true or false", models.ErrInvalidRequest)
	}
	return &paid, nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func limitParam(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", models.ErrInvalidRequest)
	}
	return limit, nil
}
