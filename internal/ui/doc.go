// Package ui renders terminal output for the gfhanger CLI.
//
// Printer writes one-shot output (headers, result boxes, device tables)
// and falls back to plain lines when stdout is not a terminal. The watch
// command runs DashboardModel, a Bubble Tea program that follows status
// events and sends raise/lower/stop for the selected device.
//
// Logging is controlled by GFHANGER_LOG_LEVEL and is silent by default so
// that the styled output stays clean.
package ui
