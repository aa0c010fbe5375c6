package metricspush

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const collectTimeout = 5 * time.Second

var (
	compartmentsDesc = prometheus.NewDesc(
		"dormitory_fridge_compartments",
		"Fridge compartments by floor and status.",
		[]string{"floor", "status"}, nil,
	)
	activeAssignmentsDesc = prometheus.NewDesc(
		"dormitory_fridge_active_assignments",
		"Active room to compartment assignments by floor.",
		[]string{"floor"}, nil,
	)
)

// OccupancyCollector reads compartment and assignment counts from the store on
// every scrape.
type OccupancyCollector struct {
	db *gorm.DB
}

func NewOccupancyCollector(db *gorm.DB) *OccupancyCollector {
	return &OccupancyCollector{db: db}
}

func (c *OccupancyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- compartmentsDesc
	ch <- activeAssignmentsDesc
}

func (c *OccupancyCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	var compartments []struct {
		Floor  int
		Status string
		Total  int64
	}
	err := c.db.WithContext(ctx).
		Table("fridge_compartments AS c").
		Select("u.floor AS floor, c.status AS status, COUNT(*) AS total").
		Joins("JOIN fridge_units u ON u.id = c.unit_id").
		Group("u.floor, c.status").
		Scan(&compartments).Error
	if err != nil {
		ch <- prometheus.NewInvalidMetric(compartmentsDesc, err)
	} else {
		for _, row := range compartments {
			ch <- prometheus.MustNewConstMetric(compartmentsDesc, prometheus.GaugeValue, float64(row.Total), strconv.Itoa(row.Floor), row.Status)
		}
	}

	var assignments []struct {
		Floor int
		Total int64
	}
	err = c.db.WithContext(ctx).
		Table("room_compartment_assignments AS a").
		Select("u.floor AS floor, COUNT(*) AS total").
		Joins("JOIN fridge_compartments c ON c.id = a.compartment_id").
		Joins("JOIN fridge_units u ON u.id = c.unit_id").
		Where("a.revoked_at IS NULL").
		Group("u.floor").
		Scan(&assignments).Error
	if err != nil {
		ch <- prometheus.NewInvalidMetric(activeAssignmentsDesc, err)
		return
	}
	for _, row := range assignments {
		ch <- prometheus.MustNewConstMetric(activeAssignmentsDesc, prometheus.GaugeValue, float64(row.Total), strconv.Itoa(row.Floor))
	}
}
