// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders relgraph results for the terminal.
package ux

import (
	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, roots
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - symbols
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - tree guides
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text

	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for loops and truncation
	ColorError   = lipgloss.Color("#E74C3C") // Red for unresolved symbols
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Symbol  lipgloss.Style
	Guide   lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Symbol:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Guide:   lipgloss.NewStyle().Foreground(ColorTealDeep),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
}

// Icon provides themed markers
type Icon string

const (
	IconLoop     Icon = "↻"
	IconNotFound Icon = "✗"
	IconCut      Icon = "…"
	IconArrow    Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconLoop, IconCut:
		return Styles.Warning.Render(string(i))
	case IconNotFound:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// HeatBar renders heat in [0,1] as a bar of width cells.
func HeatBar(heat float64, width int) string {
	if heat < 0 {
		heat = 0
	}
	if heat > 1 {
		heat = 1
	}
	filled := int(heat*float64(width) + 0.5)
	return repeatChar('█', filled) + repeatChar('░', width-filled)
}

func repeatChar(c rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = c
	}
	return string(result)
}
