package orchestrator

import "github.com/shaiso/Relay/internal/domain"

// Partition разбивает шаги на группы по полю group.
//
// Группы идут в порядке первого появления имени во входе, шаги внутри
// группы сохраняют исходный порядок. Шаги без group попадают в одну
// группу с именем nil.
func Partition(steps []domain.Step) []domain.Group {
	var groups []domain.Group

	for _, step := range steps {
		idx := -1
		for i := range groups {
			if domain.SameGroup(groups[i].Name, step.Group) {
				idx = i
				break
			}
		}

		if idx < 0 {
			groups = append(groups, domain.Group{Name: step.Group})
			idx = len(groups) - 1
		}
		groups[idx].Steps = append(groups[idx].Steps, step)
	}

	return groups
}
