package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/jebisys/switchboard/internal/types"
)

// timeRangeDurations maps the panel's chart presets onto lookback windows.
var timeRangeDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1m":  30 * 24 * time.Hour,
}

const defaultSeriesLimit = 2000

type DeviceSummary struct {
	DeviceID  string `json:"device_id"`
	Manual    int    `json:"manual"`
	Automatic int    `json:"automatic"`
	Failed    int    `json:"failed"`
}

// ActivationPoint is one scatter-plot point for the analytics chart.
type ActivationPoint struct {
	X         string `json:"x"`
	Component string `json:"component"`
	Action    string `json:"action"`
	Username  string `json:"username"`
	Success   bool   `json:"success"`
}

// DeviceSeries holds a device's points split by origin.
type DeviceSeries struct {
	Manual    []ActivationPoint `json:"manual"`
	Automatic []ActivationPoint `json:"automatic"`
}

// listActivations returns chart-ready activation series over a preset
// lookback window, split per device into manual and automatic points.
func (s *Server) listActivations(c *gin.Context) {
	timeRange := c.DefaultQuery("time_range", "24h")
	lookback, ok := timeRangeDurations[timeRange]
	if !ok {
		s.respondError(c, types.NewValidationError("time_range", "must be one of 1h, 24h, 1w, 1m"))
		return
	}

	filter := storage.ActivationFilter{
		DeviceID: c.Query("device_id"),
		Limit:    defaultSeriesLimit,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(c, types.NewValidationError("limit", "must be a positive integer"))
			return
		}
		filter.Limit = n
	}

	end := time.Now()
	filter.Start = end.Add(-lookback)
	filter.End = end

	events, err := s.store.ListActivations(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	components, series := chartSeries(events)
	c.JSON(http.StatusOK, gin.H{
		"time_range": timeRange,
		"start_time": filter.Start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
		"count":      len(events),
		"data": gin.H{
			"components":  components,
			"activations": series,
		},
	})
}

// chartSeries groups events per device in first-seen order. Automatic
// points carry "Schedule" in place of a username.
func chartSeries(events []storage.RelayActivation) ([]string, map[string]*DeviceSeries) {
	components := make([]string, 0)
	series := make(map[string]*DeviceSeries)

	for _, event := range events {
		deviceSeries, ok := series[event.DeviceID]
		if !ok {
			deviceSeries = &DeviceSeries{
				Manual:    make([]ActivationPoint, 0),
				Automatic: make([]ActivationPoint, 0),
			}
			series[event.DeviceID] = deviceSeries
			components = append(components, event.DeviceID)
		}

		username := "Schedule"
		if event.Username != nil && *event.Username != "" {
			username = *event.Username
		}

		point := ActivationPoint{
			X:         event.Timestamp.Format(time.RFC3339),
			Component: event.DeviceID,
			Action:    event.Action,
			Username:  username,
			Success:   event.Success,
		}
		if event.IsAutomatic {
			deviceSeries.Automatic = append(deviceSeries.Automatic, point)
		} else {
			deviceSeries.Manual = append(deviceSeries.Manual, point)
		}
	}
	return components, series
}

// activationSummary aggregates toggle counts per device over a preset
// lookback window, split into manual and automatic.
func (s *Server) activationSummary(c *gin.Context) {
	timeRange := c.DefaultQuery("time_range", "24h")
	lookback, ok := timeRangeDurations[timeRange]
	if !ok {
		s.respondError(c, types.NewValidationError("time_range", "must be one of 1h, 24h, 1w, 1m"))
		return
	}

	events, err := s.store.ListActivations(c.Request.Context(), storage.ActivationFilter{
		Start: time.Now().Add(-lookback),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	byDevice := make(map[string]*DeviceSummary)
	for _, event := range events {
		summary, ok := byDevice[event.DeviceID]
		if !ok {
			summary = &DeviceSummary{DeviceID: event.DeviceID}
			byDevice[event.DeviceID] = summary
		}
		if !event.Success {
			summary.Failed++
			continue
		}
		if event.IsAutomatic {
			summary.Automatic++
		} else {
			summary.Manual++
		}
	}

	summaries := make([]DeviceSummary, 0, len(byDevice))
	for _, id := range s.driver.Devices() {
		if summary, ok := byDevice[id]; ok {
			summaries = append(summaries, *summary)
			delete(byDevice, id)
		} else {
			summaries = append(summaries, DeviceSummary{DeviceID: id})
		}
	}
	for _, summary := range byDevice {
		summaries = append(summaries, *summary)
	}

	c.JSON(http.StatusOK, gin.H{
		"time_range": timeRange,
		"devices":    summaries,
		"total":      len(events),
	})
}
