package tasks

// Aggregate reduces a task list into counts per status and category, total focus
// time and mean difficulty. Every known status and category is present in the maps,
// zero when unused. An empty input yields AverageDifficulty 0.
func Aggregate(tasks []Task) Stats {
	s := Stats{
		ByStatus:   make(map[Status]int, len(allStatuses)),
		ByCategory: make(map[Category]int, len(allCategories)),
	}
	for _, st := range allStatuses {
		s.ByStatus[st] = 0
	}
	for _, c := range allCategories {
		s.ByCategory[c] = 0
	}

	difficultySum := 0
	for _, t := range tasks {
		s.Total++
		s.ByStatus[t.Status]++
		s.ByCategory[t.Category]++
		s.TotalFocusTime += t.TotalFocusTime
		difficultySum += t.Difficulty
	}
	if s.Total > 0 {
		s.AverageDifficulty = float64(difficultySum) / float64(s.Total)
	}
	return s
}
