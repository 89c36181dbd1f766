package contest

import appErr "tuackng/pkg/errors"

// FindDay returns the day whose name matches, or nil.
func (c *ContestConfig) FindDay(name string) *ContestDayConfig {
	for _, day := range c.Days {
		if day.Name == name {
			return day
		}
	}
	return nil
}

// SelectDays returns every day when filter is empty, otherwise the single
// day named by filter.
func (c *ContestConfig) SelectDays(filter string) ([]*ContestDayConfig, error) {
	if filter == "" {
		return c.Days, nil
	}
	day := c.FindDay(filter)
	if day == nil {
		return nil, appErr.Newf(appErr.DayNotFound, "day %s not found in contest %s", filter, c.Name).
			WithDetail("day", filter)
	}
	return []*ContestDayConfig{day}, nil
}
