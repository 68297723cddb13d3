package inbound

import (
	"sort"
	"strings"

	"github.com/yegors/if-inbounds/internal/ifapi"
)

// Frequency types as reported by the ATC endpoints
const (
	FrequencyGround    = 0
	FrequencyTower     = 1
	FrequencyUnicom    = 2
	FrequencyClearance = 3
	FrequencyApproach  = 4
	FrequencyDeparture = 5
	FrequencyCenter    = 6
	FrequencyATIS      = 7
)

var frequencyNames = map[int]string{
	FrequencyGround:    "Ground",
	FrequencyTower:     "Tower",
	FrequencyUnicom:    "Unicom",
	FrequencyClearance: "Clearance",
	FrequencyApproach:  "Approach",
	FrequencyDeparture: "Departure",
	FrequencyCenter:    "Center",
	FrequencyATIS:      "ATIS",
}

// Display order of controllers; unlisted names sort last
var controllerOrder = map[string]int{
	"ATIS":      0,
	"Clearance": 1,
	"Ground":    2,
	"Tower":     3,
	"Approach":  4,
	"Departure": 5,
	"Center":    6,
	"Unknown":   7,
}

// Single-letter codes for the ATC overview. Center shares "C" with Clearance.
var frequencyCodes = map[int]string{
	FrequencyGround:    "G",
	FrequencyTower:     "T",
	FrequencyUnicom:    "U",
	FrequencyClearance: "C",
	FrequencyApproach:  "A",
	FrequencyDeparture: "D",
	FrequencyCenter:    "C",
	FrequencyATIS:      "S",
}

// summaryCodeOrder lists the codes shown in the overview, in order
var summaryCodeOrder = []string{"G", "T", "A", "D", "S"}

// FrequencyName maps a frequency type to its name, or "Unknown"
func FrequencyName(frequencyType int) string {
	if name, ok := frequencyNames[frequencyType]; ok {
		return name
	}
	return "Unknown"
}

func controllerRank(name string) int {
	if rank, ok := controllerOrder[name]; ok {
		return rank
	}
	return len(controllerOrder)
}

// buildControllers names and orders the facilities of one airport
func buildControllers(facilities []ifapi.ATCFacility) []Controller {
	controllers := make([]Controller, 0, len(facilities))
	for _, f := range facilities {
		controllers = append(controllers, Controller{
			FrequencyName: FrequencyName(f.Type),
			Username:      f.Username,
			Type:          f.Type,
		})
	}
	sort.SliceStable(controllers, func(i, j int) bool {
		return controllerRank(controllers[i].FrequencyName) < controllerRank(controllers[j].FrequencyName)
	})
	return controllers
}

// CenterFrequencies returns only the Center controllers
func CenterFrequencies(controllers []Controller) []Controller {
	var centers []Controller
	for _, c := range controllers {
		if c.Type == FrequencyCenter {
			centers = append(centers, c)
		}
	}
	return centers
}

// frequencySummary turns a set of facility types into the G,T,A,D,S letters
// present, in that order.
func frequencySummary(types []int) string {
	present := make(map[string]bool, len(types))
	for _, t := range types {
		if code, ok := frequencyCodes[t]; ok {
			present[code] = true
		}
	}
	var b strings.Builder
	for _, code := range summaryCodeOrder {
		if present[code] {
			b.WriteString(code)
		}
	}
	return b.String()
}
