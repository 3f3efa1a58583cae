// Package control implements the dashboard's WebSocket control channel.
package control

import (
	"github.com/wachiwi/pi-control/pkg/logs"
	"github.com/wachiwi/pi-control/pkg/stats"
)

// CommandType is the type of an inbound message.
type CommandType string

const (
	CmdGetStats             CommandType = "getStats"
	CmdStartStatsMonitoring CommandType = "startStatsMonitoring"
	CmdStopStatsMonitoring  CommandType = "stopStatsMonitoring"
	CmdReboot               CommandType = "reboot"
	CmdShutdown             CommandType = "shutdown"
	CmdStartCamera          CommandType = "startCamera"
	CmdStopCamera           CommandType = "stopCamera"
	CmdGetCameraStatus      CommandType = "getCameraStatus"
	CmdGetLogs              CommandType = "getLogs"
	CmdSetLogLevel          CommandType = "setLogLevel"
)

var knownCommands = map[CommandType]bool{
	CmdGetStats:             true,
	CmdStartStatsMonitoring: true,
	CmdStopStatsMonitoring:  true,
	CmdReboot:               true,
	CmdShutdown:             true,
	CmdStartCamera:          true,
	CmdStopCamera:           true,
	CmdGetCameraStatus:      true,
	CmdGetLogs:              true,
	CmdSetLogLevel:          true,
}

// Known reports whether t is a recognized command.
func (t CommandType) Known() bool { return knownCommands[t] }

// Command is an inbound message.
type Command struct {
	Type   CommandType        `json:"type"`
	Filter *logs.FilterParams `json:"filter,omitempty"`
	Level  string             `json:"level,omitempty"`
}

// StreamInfo tells clients where to read the raw H264 stream.
type StreamInfo struct {
	Type  string `json:"type"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Codec string `json:"codec"`
}

// CameraStatus is the payload of a cameraStatus message.
type CameraStatus struct {
	Active     bool        `json:"active"`
	Available  bool        `json:"available"`
	StreamInfo *StreamInfo `json:"streamInfo,omitempty"`
}

// Outbound messages.
type (
	StatusMessage struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	StatsMessage struct {
		Type string      `json:"type"`
		Data stats.Stats `json:"data"`
	}
	CameraStatusMessage struct {
		Type string `json:"type"`
		CameraStatus
	}
	LogMessage struct {
		Type  string     `json:"type"`
		Entry logs.Entry `json:"entry"`
	}
	LogHistoryMessage struct {
		Type string       `json:"type"`
		Logs []logs.Entry `json:"logs"`
	}
)

func NewStatus(msg string) StatusMessage {
	return StatusMessage{Type: "status", Message: msg}
}

func NewStats(s stats.Stats) StatsMessage {
	return StatsMessage{Type: "systemStats", Data: s}
}

func NewCameraStatus(s CameraStatus) CameraStatusMessage {
	return CameraStatusMessage{Type: "cameraStatus", CameraStatus: s}
}

func NewLog(e logs.Entry) LogMessage {
	return LogMessage{Type: "log", Entry: e}
}

func NewLogHistory(entries []logs.Entry) LogHistoryMessage {
	if entries == nil {
		entries = []logs.Entry{}
	}
	return LogHistoryMessage{Type: "logHistory", Logs: entries}
}
