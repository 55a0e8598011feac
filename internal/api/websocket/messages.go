package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Relay messages
	MessageTypeRelayState MessageType = "relay_state"
	MessageTypeRelayError MessageType = "relay_error"

	// Schedule messages
	MessageTypeScheduleUpdated MessageType = "schedule_updated"
	MessageTypeScheduleDeleted MessageType = "schedule_deleted"

	// System messages
	MessageTypeServiceState MessageType = "service_state"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RelayStateData announces a relay transition, manual or automatic.
type RelayStateData struct {
	DeviceID    string `json:"device_id"`
	Action      string `json:"action"`
	Status      string `json:"status"`
	IsAutomatic bool   `json:"is_automatic"`
	Username    string `json:"username,omitempty"`
}

// RelayErrorData announces a failed toggle attempt.
type RelayErrorData struct {
	DeviceID string `json:"device_id"`
	Action   string `json:"action"`
	Message  string `json:"message,omitempty"`
}

// ScheduleEventData announces a schedule change for one device.
type ScheduleEventData struct {
	DeviceID  string   `json:"device_id"`
	StartTime string   `json:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
	Days      []string `json:"days,omitempty"`
	Enabled   bool     `json:"enabled"`
}

// ServiceStateData announces a systemd unit transition.
type ServiceStateData struct {
	Service string `json:"service"`
	Action  string `json:"action"`
	Active  string `json:"active,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewRelayStateMessage(deviceID, action, status string, isAutomatic bool, username string) Message {
	return NewMessage(MessageTypeRelayState, RelayStateData{
		DeviceID:    deviceID,
		Action:      action,
		Status:      status,
		IsAutomatic: isAutomatic,
		Username:    username,
	})
}

func NewRelayErrorMessage(deviceID, action, message string) Message {
	return NewMessage(MessageTypeRelayError, RelayErrorData{
		DeviceID: deviceID,
		Action:   action,
		Message:  message,
	})
}

func NewScheduleMessage(msgType MessageType, deviceID, startTime, endTime string, days []string, enabled bool) Message {
	return NewMessage(msgType, ScheduleEventData{
		DeviceID:  deviceID,
		StartTime: startTime,
		EndTime:   endTime,
		Days:      days,
		Enabled:   enabled,
	})
}

func NewServiceStateMessage(service, action, active string) Message {
	return NewMessage(MessageTypeServiceState, ServiceStateData{
		Service: service,
		Action:  action,
		Active:  active,
	})
}
