// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package format renders meal analyses and calorie progress as Markdown
// messages.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.astrophena.name/macrotrackr/internal/macros"
	"go.astrophena.name/macrotrackr/internal/progress"
)

const barLen = 20

// Meal renders a parsed meal analysis for the given user.
func Meal(userName string, a *macros.Analysis) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📊 **Meal Analysis for %s**\n\n", userName)
	for _, it := range a.Items {
		sb.WriteString("• " + itemLine(it) + "\n")
	}
	sb.WriteString("\n**Total:** " + itemLine(a.Total()))

	return sb.String()
}

func itemLine(it macros.Item) string {
	line := fmt.Sprintf("%d kcal | P %sg | C %sg | F %sg",
		it.Calories, gram(it.Protein), gram(it.Carbs), gram(it.Fat))
	if it.Name == "Total" {
		return line
	}
	return it.Name + ": " + line
}

// gram formats a gram count with at most one decimal place.
func gram(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// DailyProgress renders the user's calorie total for the current cycle as
// a progress bar with the remaining calories.
func DailyProgress(p progress.Progress) string {
	var pct int
	if p.Goal > 0 {
		pct = int(math.Round(float64(p.Calories) / float64(p.Goal) * 100))
		if pct > 100 {
			pct = 100
		}
	}

	filled := barLen * pct / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barLen-filled)

	var sb strings.Builder
	sb.WriteString("📊 **Daily Calorie Progress**\n")
	fmt.Fprintf(&sb, "[%s] %d / %d kcal (%d%%)\n\n", bar, p.Calories, p.Goal, pct)
	fmt.Fprintf(&sb, "🎯 Remaining: %d kcal", p.Remaining())
	return sb.String()
}
