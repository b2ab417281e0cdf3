// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package macros parses model-produced meal analyses into structured
// per-item and total macro breakdowns.
//
// The vision model is prompted to describe a meal one food item per line,
// each line carrying a calorie figure and protein/carbs/fat gram counts:
//
//	• Grilled chicken breast: 230 kcal | P 43g | C 0g | F 5g
//
// Models don't always comply, so the parser is deliberately lenient: any
// line with a recognizable "N kcal" figure counts as an item, macro grams
// are optional, and everything else is skipped.
package macros

import (
	"bufio"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoItems is returned by [Parse] when no food items were found in the
// analysis text, meaning the model response was unusable.
var ErrNoItems = errors.New("no food items found in analysis")

// maxItemCalories is a sanity ceiling for a single food item; lines
// claiming more are treated as model hallucinations and skipped.
const maxItemCalories = 3000

// Item is a single food item with its calorie and macro breakdown.
// Macros are in grams.
type Item struct {
	Name     string  `json:"name"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
}

// Analysis is an ordered list of food items parsed from a meal analysis.
type Analysis struct {
	Items []Item `json:"items"`
}

// Total returns the summary row for the analysis. It is always recomputed
// from the items, never stored.
func (a *Analysis) Total() Item {
	t := Item{Name: "Total"}
	for _, it := range a.Items {
		t.Calories += it.Calories
		t.Protein += it.Protein
		t.Carbs += it.Carbs
		t.Fat += it.Fat
	}
	return t
}

var (
	caloriesRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*kcal`)
	proteinRe  = regexp.MustCompile(`(?i)\bP:?\s*(\d+(?:\.\d+)?)\s*g?\b`)
	carbsRe    = regexp.MustCompile(`(?i)\bC:?\s*(\d+(?:\.\d+)?)\s*g?\b`)
	fatRe      = regexp.MustCompile(`(?i)\bF:?\s*(\d+(?:\.\d+)?)\s*g?\b`)
)

// Parse extracts food items from a meal analysis text. Lines without a
// recognizable calorie figure are skipped; the model's own total line is
// skipped too, so totals are never counted twice. If nothing parses, Parse
// returns [ErrNoItems].
func Parse(text string) (*Analysis, error) {
	a := new(Analysis)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()

		m := caloriesRe.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		if strings.Contains(strings.ToLower(line), "total") {
			continue
		}

		cal, err := strconv.ParseFloat(line[m[2]:m[3]], 64)
		if err != nil {
			continue
		}
		calories := int(math.Round(cal))
		if calories <= 0 || calories > maxItemCalories {
			continue
		}

		a.Items = append(a.Items, Item{
			Name:     itemName(line, m[0]),
			Calories: calories,
			Protein:  grams(proteinRe, line),
			Carbs:    grams(carbsRe, line),
			Fat:      grams(fatRe, line),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(a.Items) == 0 {
		return nil, ErrNoItems
	}
	return a, nil
}

// itemName extracts the food item name from a line: the text before the
// colon, or failing that, the text before the calorie figure starting at
// calPos.
func itemName(line string, calPos int) string {
	name := line[:calPos]
	if colon := strings.Index(name, ":"); colon != -1 {
		name = name[:colon]
	}
	name = strings.TrimFunc(name, func(r rune) bool {
		return strings.ContainsRune("•*-–—:| \t", r)
	})
	if name == "" {
		name = "Item"
	}
	return name
}

func grams(re *regexp.Regexp, line string) float64 {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
