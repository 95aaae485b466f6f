package dependency

import "github.com/rezkam/weekplan/internal/domain"

// WouldCreateCycle reports whether adding the edge taskID -> dependsOnID to
// edges closes a cycle. It walks prerequisites starting at dependsOnID and
// looks for taskID.
func WouldCreateCycle(taskID, dependsOnID string, edges []domain.TaskDependency) bool {
	if taskID == dependsOnID {
		return true
	}

	prerequisites := make(map[string][]string, len(edges))
	for _, edge := range edges {
		prerequisites[edge.TaskID] = append(prerequisites[edge.TaskID], edge.DependsOnTaskID)
	}

	visited := map[string]bool{dependsOnID: true}
	stack := []string{dependsOnID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, next := range prerequisites[current] {
			if next == taskID {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
