/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Lipgloss styles used across the migration commands.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // green

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")) // yellow
)

// printPlan shows the resolved endpoints and settings before work begins.
func printPlan(sourceDisplay, targetDisplay string) {
	fmt.Println(titleStyle.Render("Migration plan"))
	fmt.Printf("  source:    %s\n", sourceDisplay)
	fmt.Printf("  target:    %s\n", targetDisplay)
	if shardCount > 0 {
		fmt.Printf("  q:         %d\n", shardCount)
	}
	if replicaCount > 0 {
		fmt.Printf("  n:         %d\n", replicaCount)
	}
	if placement != "" {
		fmt.Printf("  placement: %s\n", placement)
	}
}

// successLine returns a green "✓ text" string.
func successLine(text string) string {
	return successStyle.Render("✓") + " " + text
}

// warnLine returns a yellow "! text" string.
func warnLine(text string) string {
	return warnStyle.Render("!") + " " + text
}
