package niebocross

import (
	"fmt"

	"github.com/zatyrani/zatyrani-backend/config"
	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/eligibility"
	"github.com/zatyrani/zatyrani-backend/internal/fees"
)

// LimitGroup caps the number of participants across related categories.
type LimitGroup struct {
	Name       string
	Categories []fees.Category
	Limit      int
}

type GroupUsage struct {
	Group      string   `json:"group"`
	Categories []string `json:"categories"`
	Limit      int      `json:"limit"`
	Taken      int64    `json:"taken"`
	Remaining  int64    `json:"remaining"`
}

func LimitGroups(cfg *config.Config) []LimitGroup {
	return []LimitGroup{
		{Name: "kids", Categories: []fees.Category{fees.CategoryKidsRun}, Limit: cfg.KidsLimit},
		{Name: "adults_runners", Categories: []fees.Category{fees.Category3kmRun, fees.Category9kmRun}, Limit: cfg.AdultRunnersLimit},
		{Name: "nw", Categories: []fees.Category{fees.Category3kmNW, fees.Category9kmNW}, Limit: cfg.NordicWalkingLimit},
	}
}

func groupOf(groups []LimitGroup, cat fees.Category) (LimitGroup, bool) {
	for _, g := range groups {
		for _, c := range g.Categories {
			if c == cat {
				return g, true
			}
		}
	}
	return LimitGroup{}, false
}

// Usage reports how full each group is.
func Usage(groups []LimitGroup, counts map[string]int64) []GroupUsage {
	out := make([]GroupUsage, 0, len(groups))
	for _, g := range groups {
		u := GroupUsage{Group: g.Name, Limit: g.Limit}
		for _, c := range g.Categories {
			u.Categories = append(u.Categories, string(c))
			u.Taken += counts[string(c)]
		}
		u.Remaining = int64(g.Limit) - u.Taken
		if u.Remaining < 0 {
			u.Remaining = 0
		}
		out = append(out, u)
	}
	return out
}

// checkLimits rejects a batch that would push any group over its limit. A
// limit of zero or less means the group is unlimited.
func checkLimits(groups []LimitGroup, counts map[string]int64, adding []eligibility.Participant) error {
	wanted := make(map[string]int64)
	for _, p := range adding {
		if g, ok := groupOf(groups, p.Category); ok {
			wanted[g.Name]++
		}
	}
	for _, u := range Usage(groups, counts) {
		n := wanted[u.Group]
		if n == 0 || u.Limit <= 0 {
			continue
		}
		if u.Taken+n > int64(u.Limit) {
			return apperrors.Wrap(apperrors.ErrConflict, fmt.Sprintf("Brak wolnych miejsc w kategorii %s (pozostało %d)", groupLabel(u.Group), u.Remaining))
		}
	}
	return nil
}

func groupLabel(name string) string {
	switch name {
	case "kids":
		return "biegi dzieci"
	case "adults_runners":
		return "biegi 3km i 9km"
	case "nw":
		return "nordic walking"
	}
	return name
}
